// Package mutate implements the twelve leaf JSON mutators a channel
// chains together (spec §4.1): append, remove, rename, join, split, set,
// sort, trim, trim_space, uppercase, lowercase, grok. Mutators address
// flat, top-level fields of a JSON object by name — dotted paths (see
// jsonval.NestedValue) are never interpreted here.
package mutate

import (
	"strings"

	"github.com/feeddb/feeddb/errs"
	"github.com/feeddb/feeddb/grok"
	"github.com/feeddb/feeddb/jsonval"
)

// Mutator mutates a JSON object in place.
type Mutator interface {
	// Type returns the tag this mutator was parsed from.
	Type() string
	// Mutate applies the transform to obj, returning a typed *errs.Error
	// on failure.
	Mutate(obj jsonval.Object) error
}

// PlainInputField is the reserved field name that activates raw-body
// ingestion through a leading grok mutator.
const PlainInputField = "_plain_input"

// New parses a single mutator definition (one element of a channel's
// "channel" array) into a Mutator.
func New(def map[string]any) (Mutator, error) {
	typ, _ := def["type"].(string)
	switch typ {
	case "append":
		return newAppend(def)
	case "remove":
		return newRemove(def)
	case "rename":
		return newRename(def)
	case "join":
		return newJoin(def)
	case "split":
		return newSplit(def)
	case "set":
		return newSet(def)
	case "sort":
		return newSort(def)
	case "trim":
		return newTrim(def)
	case "trim_space":
		return newTrimSpace(def)
	case "uppercase":
		return newUpperLower(def, "uppercase", strings.ToUpper)
	case "lowercase":
		return newUpperLower(def, "lowercase", strings.ToLower)
	case "grok":
		return newGrok(def)
	default:
		return nil, errs.WithKey(errs.ParsingError, typ)
	}
}

func fieldOf(def map[string]any) (string, error) {
	f, ok := def["field"].(string)
	if !ok || f == "" {
		return "", errs.WithKey(errs.RequiredFieldNotFound, "field")
	}
	return f, nil
}

// --- remove -----------------------------------------------------------

type removeMutator struct{ field string }

func newRemove(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	return &removeMutator{field: f}, nil
}

func (m *removeMutator) Type() string { return "remove" }

func (m *removeMutator) Mutate(obj jsonval.Object) error {
	if _, ok := obj[m.field]; !ok {
		return errs.WithKey(errs.CannotRemoveField, m.field)
	}
	delete(obj, m.field)
	return nil
}

// --- rename -------------------------------------------------------------

type renameMutator struct{ field, newName string }

func newRename(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	nn, ok := def["new_name"].(string)
	if !ok || nn == "" {
		return nil, errs.WithKey(errs.RequiredFieldNotFound, "new_name")
	}
	return &renameMutator{field: f, newName: nn}, nil
}

func (m *renameMutator) Type() string { return "rename" }

func (m *renameMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	obj[m.newName] = v
	delete(obj, m.field)
	return nil
}

// --- append ---------------------------------------------------------------

type appendMutator struct{ field, suffix string }

func newAppend(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	s, ok := def["append"].(string)
	if !ok {
		return nil, errs.WithKey(errs.NotString, "append")
	}
	return &appendMutator{field: f, suffix: s}, nil
}

func (m *appendMutator) Type() string { return "append" }

func (m *appendMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	s, ok := v.(string)
	if !ok {
		return errs.WithKey(errs.NotString, m.field)
	}
	obj[m.field] = s + m.suffix
	return nil
}

// --- set ------------------------------------------------------------------

type setMutator struct {
	field string
	value any
}

func newSet(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	return &setMutator{field: f, value: def["value"]}, nil
}

func (m *setMutator) Type() string { return "set" }

func (m *setMutator) Mutate(obj jsonval.Object) error {
	obj[m.field] = m.value
	return nil
}

// --- split ------------------------------------------------------------------

type splitMutator struct{ field, sep string }

func newSplit(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	sep, ok := def["separator"].(string)
	if !ok {
		return nil, errs.WithKey(errs.NotString, "separator")
	}
	if sep == "" {
		return nil, errs.New(errs.SplitEmptySeparator)
	}
	return &splitMutator{field: f, sep: sep}, nil
}

func (m *splitMutator) Type() string { return "split" }

func (m *splitMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	s, ok := v.(string)
	if !ok {
		return errs.WithKey(errs.NotString, m.field)
	}
	parts := strings.Split(s, m.sep)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	obj[m.field] = out
	return nil
}

// --- join -------------------------------------------------------------------

type joinMutator struct {
	// exactly one of fieldName / fieldNames is set, per the two forms in §4.1
	fieldName  string
	fieldNames []string
	sep        string
	newField   string
}

func newJoin(def map[string]any) (Mutator, error) {
	sep, ok := def["separator"].(string)
	if !ok {
		return nil, errs.WithKey(errs.NotString, "separator")
	}

	switch f := def["field"].(type) {
	case string:
		if f == "" {
			return nil, errs.WithKey(errs.RequiredFieldNotFound, "field")
		}
		return &joinMutator{fieldName: f, sep: sep}, nil
	case []any:
		names := make([]string, 0, len(f))
		for _, x := range f {
			s, ok := x.(string)
			if !ok {
				return nil, errs.WithKey(errs.NotString, "field")
			}
			names = append(names, s)
		}
		nf, ok := def["new_field"].(string)
		if !ok || nf == "" {
			return nil, errs.WithKey(errs.RequiredFieldNotFound, "new_field")
		}
		return &joinMutator{fieldNames: names, sep: sep, newField: nf}, nil
	default:
		return nil, errs.WithKey(errs.JoinTypeNotRecognized, "field")
	}
}

func (m *joinMutator) Type() string { return "join" }

func (m *joinMutator) Mutate(obj jsonval.Object) error {
	if m.fieldName != "" {
		v, ok := obj[m.fieldName]
		if !ok {
			return errs.WithKey(errs.FieldNotFoundInJSON, m.fieldName)
		}
		arr, ok := v.([]any)
		if !ok {
			return errs.WithKey(errs.NotAnArray, m.fieldName)
		}
		parts := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := e.(string); ok {
				parts = append(parts, s)
			}
		}
		obj[m.fieldName] = strings.Join(parts, m.sep)
		return nil
	}

	parts := make([]string, 0, len(m.fieldNames))
	for _, name := range m.fieldNames {
		v, ok := obj[name]
		if !ok {
			return errs.WithKey(errs.FieldNotFoundInJSON, name)
		}
		s, ok := v.(string)
		if !ok {
			return errs.WithKey(errs.NotString, name)
		}
		parts = append(parts, s)
	}
	obj[m.newField] = strings.Join(parts, m.sep)
	return nil
}

// --- trim -------------------------------------------------------------------

type trimMutator struct {
	field string
	right bool
	total int
}

func newTrim(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	from, ok := def["from"].(string)
	if !ok {
		return nil, errs.WithKey(errs.NotString, "from")
	}
	totalF, ok := def["total"].(float64)
	if !ok {
		return nil, errs.WithKey(errs.NotI64, "total")
	}
	return &trimMutator{field: f, right: from == "right", total: int(totalF)}, nil
}

func (m *trimMutator) Type() string { return "trim" }

func (m *trimMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	s, ok := v.(string)
	if !ok {
		return errs.WithKey(errs.NotString, m.field)
	}
	runes := []rune(s)
	total := m.total
	if total > len(runes) {
		total = len(runes)
	}
	if total < 0 {
		total = 0
	}
	if m.right {
		obj[m.field] = string(runes[total:])
	} else {
		obj[m.field] = string(runes[:total])
	}
	return nil
}

// --- trim_space ---------------------------------------------------------------

type trimSpaceMutator struct{ field string }

func newTrimSpace(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	return &trimSpaceMutator{field: f}, nil
}

func (m *trimSpaceMutator) Type() string { return "trim_space" }

func (m *trimSpaceMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	s, ok := v.(string)
	if !ok {
		return errs.WithKey(errs.NotString, m.field)
	}
	obj[m.field] = strings.TrimSpace(s)
	return nil
}

// --- uppercase / lowercase ----------------------------------------------------

type upperLowerMutator struct {
	field string
	typ   string
	f     func(string) string
}

func newUpperLower(def map[string]any, typ string, f func(string) string) (Mutator, error) {
	field, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	return &upperLowerMutator{field: field, f: f, typ: typ}, nil
}

func (m *upperLowerMutator) Type() string { return m.typ }

func (m *upperLowerMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	switch t := v.(type) {
	case string:
		obj[m.field] = m.f(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return errs.WithKey(errs.UpperLowerCaseTypeNotRecognized, m.field)
			}
			out[i] = m.f(s)
		}
		obj[m.field] = out
	default:
		return errs.WithKey(errs.UpperLowerCaseTypeNotRecognized, m.field)
	}
	return nil
}

// --- sort ---------------------------------------------------------------------

type sortMutator struct {
	field      string
	descending bool
}

func newSort(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	desc, ok := def["descending"].(bool)
	if !ok {
		return nil, errs.WithKey(errs.NotBool, "descending")
	}
	return &sortMutator{field: f, descending: desc}, nil
}

func (m *sortMutator) Type() string { return "sort" }

func (m *sortMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	arr, ok := v.([]any)
	if !ok {
		return errs.WithKey(errs.NotAnArray, m.field)
	}
	if len(arr) == 0 {
		return errs.WithKey(errs.EmptyArray, m.field)
	}

	switch arr[0].(type) {
	case string:
		ss := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := e.(string); ok {
				ss = append(ss, s)
			}
		}
		sorted := jsonval.SortStrings(ss, m.descending)
		out := make([]any, len(sorted))
		for i, s := range sorted {
			out[i] = s
		}
		obj[m.field] = out
	case float64:
		ns := make([]int64, 0, len(arr))
		for _, e := range arr {
			if f, ok := e.(float64); ok {
				ns = append(ns, int64(f))
			}
		}
		sorted := jsonval.SortInt64s(ns, m.descending)
		out := make([]any, len(sorted))
		for i, n := range sorted {
			out[i] = n
		}
		obj[m.field] = out
	default:
		return errs.WithKey(errs.SortNotPossible, m.field)
	}
	return nil
}

// --- grok ----------------------------------------------------------------------

type grokMutator struct {
	field   string
	pattern string
}

func newGrok(def map[string]any) (Mutator, error) {
	f, err := fieldOf(def)
	if err != nil {
		return nil, err
	}
	p, ok := def["pattern"].(string)
	if !ok || p == "" {
		return nil, errs.WithKey(errs.RequiredFieldNotFound, "pattern")
	}
	return &grokMutator{field: f, pattern: p}, nil
}

func (m *grokMutator) Type() string { return "grok" }

func (m *grokMutator) Field() string   { return m.field }
func (m *grokMutator) Pattern() string { return m.pattern }

func (m *grokMutator) Mutate(obj jsonval.Object) error {
	v, ok := obj[m.field]
	if !ok {
		return errs.WithKey(errs.FieldNotFoundInJSON, m.field)
	}
	s, ok := v.(string)
	if !ok {
		return errs.WithKey(errs.NotString, m.field)
	}
	return m.apply(obj, s)
}

// MutatePlainInput feeds raw (non-JSON) request bytes directly to the
// grok pattern; the resulting capture map becomes the entire root object.
// Only valid when Field() == mutate.PlainInputField and this is the first
// mutator in a channel (enforced by the channel package).
func (m *grokMutator) MutatePlainInput(raw []byte) (jsonval.Object, error) {
	obj := jsonval.Object{}
	if err := m.apply(obj, string(raw)); err != nil {
		return nil, err
	}
	return obj, nil
}

func (m *grokMutator) apply(obj jsonval.Object, input string) error {
	re, err := grok.Compile(m.pattern)
	if err != nil {
		return errs.WrapKey(errs.ParsingError, m.pattern, err)
	}
	captures, ok := grok.Match(re, input)
	if !ok {
		return errs.WithKey(errs.GrokNoMatches, m.field)
	}
	for k, v := range captures {
		obj[k] = v
	}
	return nil
}

// AsGrok exposes the grok-specific accessors for the channel package's
// first-mutator plain-input check, mirroring the original's as_grok().
func AsGrok(m Mutator) (*grokMutator, bool) {
	g, ok := m.(*grokMutator)
	return g, ok
}
