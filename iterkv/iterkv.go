// Package iterkv composes a kvstore.Iterator with the fixed pipeline the
// dispatcher applies to every ranged read (spec §4.3):
//
//	channel transform (optional) -> after-key/after-kv -> skip N ->
//	until-key/until-kv -> limit N
//
// The stage is lazy and pull-driven: Next only ever pulls one item from
// the base iterator at a time, never materializing the keyspace, and
// stops pulling the moment the consumer stops calling Next. It is not
// restartable and is safe for exactly one consumer.
package iterkv

import (
	"bytes"
	"log/slog"

	"github.com/feeddb/feeddb/channel"
	"github.com/feeddb/feeddb/jsonval"
	"github.com/feeddb/feeddb/kvstore"
)

// Item is a single (possibly channel-transformed) key/value pair emitted
// by a Stage.
type Item struct {
	Key   []byte
	Value []byte
}

// Options configures the optional stages layered over a base iterator.
// The zero value runs the base iterator through unchanged.
type Options struct {
	// Channel, if set, transforms every value before it reaches the
	// skip/until/limit stages. Items the channel produces no output for
	// are dropped rather than emitted empty.
	Channel    *channel.Channel
	OmitErrors bool

	// IncludeID embeds the item's key into the emitted JSON object under
	// a reserved "_id" field, as a post-channel, pre-serialize step.
	IncludeID bool

	// AfterKey drops items up to and including the first key equal to
	// AfterKey; only items strictly after it pass through. A nil AfterKey
	// disables the stage.
	AfterKey []byte

	// Skip drops the first Skip items that survive the after-key stage.
	Skip int

	// UntilKey, if set, includes the first item whose key equals
	// UntilKey and then terminates the stage — the matching item is the
	// last one emitted.
	UntilKey []byte

	// Limit caps the number of items emitted to at most Limit. A
	// non-positive Limit disables the cap.
	Limit int

	Log *slog.Logger
}

// Stage is a lazy, single-consumer, non-restartable pipeline over a
// kvstore.Iterator.
type Stage struct {
	base kvstore.Iterator
	opts Options

	afterPassed bool
	skipped     int
	emitted     int
	done        bool
}

// New wraps base with the pipeline described by opts. The returned Stage
// owns base: closing the Stage closes base.
func New(base kvstore.Iterator, opts Options) *Stage {
	return &Stage{base: base, opts: opts, afterPassed: opts.AfterKey == nil}
}

// Next pulls and transforms items from the base iterator until one
// survives the whole pipeline, or the base iterator (or a terminating
// stage) is exhausted.
func (s *Stage) Next() (Item, bool) {
	if s.done {
		return Item{}, false
	}

	for {
		kv, ok := s.base.Next()
		if !ok {
			s.done = true
			return Item{}, false
		}

		value := kv.Value
		if s.opts.Channel != nil {
			v, ok := s.opts.Channel.Apply(value, s.opts.OmitErrors, s.opts.Log)
			if !ok {
				continue
			}
			value = v
		}

		if !s.afterPassed {
			if bytes.Equal(kv.Key, s.opts.AfterKey) {
				s.afterPassed = true
			}
			continue
		}

		if s.opts.IncludeID {
			v, err := embedID(value, kv.Key)
			if err != nil {
				if s.opts.Log != nil {
					s.opts.Log.Warn("iterkv: include_id failed", slog.Any("error", err), slog.String("key", string(kv.Key)))
				}
				continue
			}
			value = v
		}

		if s.skipped < s.opts.Skip {
			s.skipped++
			continue
		}

		terminate := s.opts.UntilKey != nil && bytes.Equal(kv.Key, s.opts.UntilKey)

		s.emitted++
		if terminate || (s.opts.Limit > 0 && s.emitted >= s.opts.Limit) {
			s.done = true
		}

		return Item{Key: kv.Key, Value: value}, true
	}
}

// Close releases the base iterator, and with it any read guard it holds.
// Safe to call even if Next was never called, and more than once.
func (s *Stage) Close() error {
	return s.base.Close()
}

func embedID(value []byte, key []byte) ([]byte, error) {
	obj, err := jsonval.Decode(value)
	if err != nil {
		return nil, err
	}
	obj["_id"] = string(key)
	return jsonval.Encode(obj)
}
