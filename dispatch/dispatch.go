// Package dispatch wires the HTTP surface (spec §4.5/§4.7) onto a
// kvstore.Store: it resolves (route, keyspace, id-or-action, params)
// tuples from the URL, loads and compiles an optional channel, and
// streams one of the three response shapes back.
package dispatch

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feeddb/feeddb/channel"
	"github.com/feeddb/feeddb/errs"
	"github.com/feeddb/feeddb/httpkv"
	"github.com/feeddb/feeddb/iterkv"
	"github.com/feeddb/feeddb/jsonval"
	"github.com/feeddb/feeddb/kvstore"
	"github.com/feeddb/feeddb/sqlquery"
)

// ChannelKeyspace is the reserved keyspace channel definitions are read
// from.
const ChannelKeyspace = "_channel"

// Register mounts every recognized route (spec §4.5) onto r. More
// specific literal routes are registered before the generic
// point-lookup/write routes so the router's first-match-wins ordering
// resolves "_all", "_all_reverse", "_create_db" and "_since" correctly.
func Register(r *httpkv.Router, store kvstore.Store) {
	r.Get("/_db/_all", handleListKeyspaces(store))
	r.Get("/_db/:cf/_since/:id/_topic/:topic", handleSince(store))
	r.Get("/_db/:cf/_all", handleRange(store, false))
	r.Get("/_db/:cf/_all_reverse", handleRange(store, true))
	r.Put("/_db/:cf/_create_db", handleCreateKeyspace(store))
	r.Put("/_db/:cf/:id", handlePut(store))
	r.Get("/_db/:cf/:id", handleGet(store))
	r.Post("/_db/:cf/:id", handleGet(store))
	r.Post("/_sql", handleSQL(store))
}

func loadChannel(store kvstore.Store, id string) (*channel.Channel, error) {
	if id == "" {
		return nil, nil
	}
	raw, err := store.Get(ChannelKeyspace, id)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound || errs.KindOf(err) == errs.CFNotFound {
			return nil, errs.WithKey(errs.ChannelNotFound, id)
		}
		return nil, err
	}
	return channel.Parse(raw, nil)
}

func boolQuery(c *httpkv.Ctx, name string) bool {
	v := c.Query(name)
	return v == "1" || strings.EqualFold(v, "true")
}

func intQuery(c *httpkv.Ctx, name string) int {
	v := c.Query(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// stageOptions builds the iterkv.Options common to every ranged read from
// the request's query string (spec §6): channel, omit_errors, include_id,
// skip, limit and until_key. "end" is a separate, reserved query key the
// source never reads (spec's open questions call this out explicitly) and
// is ignored here rather than treated as a synonym.
func stageOptions(c *httpkv.Ctx, store kvstore.Store) (iterkv.Options, error) {
	ch, err := loadChannel(store, c.Query("channel"))
	if err != nil {
		return iterkv.Options{}, err
	}

	opts := iterkv.Options{
		Channel:    ch,
		OmitErrors: boolQuery(c, "omit_errors"),
		IncludeID:  boolQuery(c, "include_id"),
		Skip:       intQuery(c, "skip"),
		Limit:      intQuery(c, "limit"),
		Log:        c.Logger(),
	}
	if until := c.Query("until_key"); until != "" {
		opts.UntilKey = []byte(until)
	}
	return opts, nil
}

func handleListKeyspaces(store kvstore.Store) httpkv.Handler {
	return func(c *httpkv.Ctx) error {
		names, err := store.ListKeyspaces()
		if err != nil {
			return err
		}
		data := make([]any, len(names))
		for i, n := range names {
			data[i] = n
		}
		return c.JSON(200, map[string]any{"error": false, "data": data})
	}
}

func handleCreateKeyspace(store kvstore.Store) httpkv.Handler {
	return func(c *httpkv.Ctx) error {
		cf := c.Param("cf")
		if cf == "" {
			return errs.New(errs.MissingQuery)
		}
		if err := store.CreateKeyspace(cf); err != nil {
			return err
		}
		return c.JSON(200, map[string]any{"error": false})
	}
}

func handleGet(store kvstore.Store) httpkv.Handler {
	return func(c *httpkv.Ctx) error {
		cf, id := c.Param("cf"), c.Param("id")
		if cf == "" || id == "" {
			return errs.New(errs.MissingID)
		}

		ch, err := loadChannel(store, c.Query("channel"))
		if err != nil {
			return err
		}

		raw, err := store.Get(cf, id)
		if err != nil {
			return err
		}

		value := raw
		if ch != nil {
			v, ok := ch.Apply(raw, boolQuery(c, "omit_errors"), c.Logger())
			if !ok {
				return errs.WithKey(errs.ChannelError, id)
			}
			value = v
		}

		return c.JSON(200, map[string]any{"error": false, "data": []any{decodeValue(value)}})
	}
}

func handlePut(store kvstore.Store) httpkv.Handler {
	return func(c *httpkv.Ctx) error {
		cf := c.Param("cf")
		if cf == "" {
			return errs.New(errs.MissingQuery)
		}

		body, err := c.Bytes()
		if err != nil {
			return errs.Wrap(errs.BodyParsingError, err)
		}

		id, err := resolvePutID(c, body)
		if err != nil {
			return err
		}

		if err := store.Put(cf, id, body); err != nil {
			return err
		}
		return c.JSON(200, map[string]any{"error": false, "id": id})
	}
}

// resolvePutID implements the three id-derivation rules (spec §4.5): an
// explicit field_path query always wins (extracted from the request
// body), otherwise the path segment is taken literally unless it's one
// of the two generating sentinels.
func resolvePutID(c *httpkv.Ctx, body []byte) (string, error) {
	if fp := c.Query("field_path"); fp != "" {
		obj, err := jsonval.Decode(body)
		if err != nil {
			return "", errs.Wrap(errs.SerdeError, err)
		}
		v := jsonval.NestedValue(fp, any(obj))
		if v == nil {
			return "", errs.New(errs.NoIdFoundOnRequest)
		}
		return jsonval.AsString(v), nil
	}

	switch c.Param("id") {
	case "_auto":
		return uuid.New().String(), nil
	case "_auto_time":
		return time.Now().UTC().Format(time.RFC3339Nano), nil
	case "":
		return "", errs.New(errs.MissingID)
	default:
		return c.Param("id"), nil
	}
}

func handleRange(store kvstore.Store, reverse bool) httpkv.Handler {
	return func(c *httpkv.Ctx) error {
		cf := c.Param("cf")
		if cf == "" {
			return errs.New(errs.MissingQuery)
		}

		opts, err := stageOptions(c, store)
		if err != nil {
			return err
		}
		rev := reverse || boolQuery(c, "direction_reverse")

		base, err := store.Range(cf, "", rev)
		if err != nil {
			return err
		}
		stage := iterkv.New(base, opts)
		defer stage.Close()

		return streamItems(c, stage)
	}
}

func handleSince(store kvstore.Store) httpkv.Handler {
	return func(c *httpkv.Ctx) error {
		cf, id, topic := c.Param("cf"), c.Param("id"), c.Param("topic")
		if cf == "" || id == "" {
			return errs.New(errs.MissingID)
		}

		opts, err := stageOptions(c, store)
		if err != nil {
			return err
		}

		var base kvstore.Iterator
		if strings.HasSuffix(id, "*") {
			base, err = store.RangePrefix(cf, strings.TrimSuffix(id, "*"))
		} else {
			base, err = store.Range(cf, id, boolQuery(c, "direction_reverse"))
		}
		if err != nil {
			return err
		}
		stage := iterkv.New(base, opts)
		defer stage.Close()

		return streamItemsWithTopic(c, stage, topic)
	}
}

// streamItems writes the NDJSON iterator-read shape: one transformed
// value per line.
func streamItems(c *httpkv.Ctx, stage *iterkv.Stage) error {
	return c.Stream(200, "application/octet-stream", func(w interface{ Write([]byte) (int, error) }) error {
		for {
			item, ok := stage.Next()
			if !ok {
				return nil
			}
			if _, err := w.Write(item.Value); err != nil {
				return err
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return err
			}
		}
	})
}

// streamItemsWithTopic interleaves a topic marker line before the
// items it frames (spec §4.5's _topic variant).
func streamItemsWithTopic(c *httpkv.Ctx, stage *iterkv.Stage, topic string) error {
	return c.Stream(200, "application/octet-stream", func(w interface{ Write([]byte) (int, error) }) error {
		if _, err := w.Write([]byte("_topic:" + topic + "\n")); err != nil {
			return err
		}
		for {
			item, ok := stage.Next()
			if !ok {
				return nil
			}
			if _, err := w.Write(item.Value); err != nil {
				return err
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return err
			}
		}
	})
}

func handleSQL(store kvstore.Store) httpkv.Handler {
	return func(c *httpkv.Ctx) error {
		body, err := c.Bytes()
		if err != nil {
			return errs.Wrap(errs.BodyParsingError, err)
		}

		q, err := sqlquery.Parse(string(body))
		if err != nil {
			return err
		}

		base, err := store.Range(q.Keyspace, "", false)
		if err != nil {
			return err
		}
		defer base.Close()

		return c.Stream(200, "application/octet-stream", func(w interface{ Write([]byte) (int, error) }) error {
			skipped, emitted := 0, 0
			for {
				kv, ok := base.Next()
				if !ok {
					return nil
				}
				row, err := jsonval.Decode(kv.Value)
				if err != nil {
					continue
				}
				if !q.Matches(row) {
					continue
				}
				if skipped < q.Offset() {
					skipped++
					continue
				}
				out, err := jsonval.Encode(q.Project(row))
				if err != nil {
					continue
				}
				if _, err := w.Write(out); err != nil {
					return err
				}
				if _, err := w.Write([]byte("\n")); err != nil {
					return err
				}
				emitted++
				if q.Limit() > 0 && emitted >= q.Limit() {
					return nil
				}
			}
		})
	}
}

// decodeValue renders raw as a JSON value if it parses as one, falling
// back to the raw string for bytes a channel (or a plain PUT) left as
// non-JSON.
func decodeValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
