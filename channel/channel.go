// Package channel parses and applies channel definitions: an ordered,
// named sequence of mutate.Mutator instances (spec §4.2).
package channel

import (
	"encoding/json"
	"log/slog"

	"github.com/feeddb/feeddb/errs"
	"github.com/feeddb/feeddb/jsonval"
	"github.com/feeddb/feeddb/mutate"
)

// Channel is a compiled, ordered sequence of mutators. Non-cyclic; no
// mutator references another.
type Channel struct {
	Name     string
	Mutators []mutate.Mutator
}

// definitionJSON mirrors the persisted shape {"name", "channel": [...]}.
type definitionJSON struct {
	Name    string           `json:"name"`
	Channel []map[string]any `json:"channel"`
}

// Parse decodes a channel definition. Malformed mutator entries are
// dropped (and logged) rather than failing the whole channel — the
// resulting channel may be shorter than the input array.
func Parse(raw []byte, log *slog.Logger) (*Channel, error) {
	var def definitionJSON
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, errs.Wrap(errs.SerdeError, err)
	}

	mutators := make([]mutate.Mutator, 0, len(def.Channel))
	for _, entry := range def.Channel {
		m, err := mutate.New(entry)
		if err != nil {
			if log != nil {
				log.Warn("channel: dropping malformed mutator", slog.Any("error", err), slog.Any("entry", entry))
			}
			continue
		}
		mutators = append(mutators, m)
	}

	return &Channel{Name: def.Name, Mutators: mutators}, nil
}

// firstIsPlainInputGrok reports whether the channel's first mutator is a
// grok mutator targeting the reserved _plain_input field — the only code
// path that accepts a non-JSON request body.
func (c *Channel) firstIsPlainInputGrok() (*mutate.Mutator, bool) {
	if len(c.Mutators) == 0 {
		return nil, false
	}
	first := c.Mutators[0]
	g, ok := mutate.AsGrok(first)
	if !ok || g.Field() != mutate.PlainInputField {
		return nil, false
	}
	return &first, true
}

// Apply runs raw bytes through the channel and returns the transformed,
// re-serialized JSON bytes. omitErrors controls the per-mutator failure
// policy (spec §4.2): when set, any mutator error aborts the whole item
// (ok=false, no output); otherwise the failing mutator is skipped and the
// partially-mutated object continues through the remaining mutators.
//
// If the first mutator is a grok on _plain_input, raw is fed to it
// directly instead of being parsed as JSON.
func (c *Channel) Apply(raw []byte, omitErrors bool, log *slog.Logger) (out []byte, ok bool) {
	if len(c.Mutators) == 0 {
		return nil, false
	}

	var obj jsonval.Object
	if first, isPlain := c.firstIsPlainInputGrok(); isPlain {
		g, _ := mutate.AsGrok(*first)
		o, err := g.MutatePlainInput(raw)
		if err != nil {
			if log != nil {
				log.Warn("channel: plain-input grok failed", slog.Any("error", err))
			}
			return nil, false
		}
		obj = o
	} else {
		o, err := jsonval.Decode(raw)
		if err != nil {
			if log != nil {
				log.Warn("channel: input is not a JSON object", slog.Any("error", err))
			}
			return nil, false
		}
		obj = o
	}

	start := 0
	if _, isPlain := c.firstIsPlainInputGrok(); isPlain {
		start = 1
	}

	for _, m := range c.Mutators[start:] {
		if err := m.Mutate(obj); err != nil {
			if log != nil {
				log.Warn("channel: mutator failed", slog.String("type", m.Type()), slog.Any("error", err))
			}
			if omitErrors {
				return nil, false
			}
			continue
		}
	}

	b, err := jsonval.Encode(obj)
	if err != nil {
		if log != nil {
			log.Warn("channel: re-serialization failed", slog.Any("error", err))
		}
		return nil, false
	}
	return b, true
}
