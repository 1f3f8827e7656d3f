// Package jsonval provides the dynamic JSON tree model shared by the
// mutator set and the SQL evaluator. Values are represented with the
// types encoding/json already produces from Unmarshal into `any`:
// map[string]any, []any, string, float64, bool, nil.
package jsonval

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrNotObject is returned by Decode when the JSON root is not an object.
var ErrNotObject = errors.New("jsonval: root value is not a JSON object")

// Object is a single mutable JSON object — the only root shape mutators
// operate on.
type Object = map[string]any

// Decode parses raw bytes into an Object. Scalar or array roots are
// rejected since every mutator contract requires an object root.
func Decode(raw []byte) (Object, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Object(obj), nil
}

// Encode serializes an Object back to JSON bytes.
func Encode(o Object) ([]byte, error) {
	return json.Marshal(o)
}

// NestedValue resolves a dot-separated path against an arbitrary JSON
// value, returning nil for any missing intermediate — the SQL evaluator's
// CompoundIdentifier semantics (components/sql.rs: json_nested_value).
// The dispatcher also uses it for field_path id extraction. Mutators
// never use dotted paths.
func NestedValue(path string, v any) any {
	path = strings.ReplaceAll(path, "\"", "")
	cur := v
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// AsFloat64 attempts to read v as a float64, succeeding for JSON numbers
// and numeric strings.
func AsFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsString renders v as a comparable string for the lexicographic
// fallback comparison path.
func AsString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Truthy implements the WHERE-clause AND/OR convention: JSON null and
// false are false, any other value is true.
func Truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return v != nil
}

// Equal reports whether two arbitrary JSON values are equal under the
// comparator used by solve_where: numeric when both sides parse as
// float64, otherwise string-lexicographic.
func Equal(a, b any) bool {
	if fa, ok1 := AsFloat64(a); ok1 {
		if fb, ok2 := AsFloat64(b); ok2 {
			return fa == fb
		}
	}
	return AsString(a) == AsString(b)
}

// Compare returns -1, 0, 1 comparing a to b, numerically when possible,
// lexicographically otherwise.
func Compare(a, b any) int {
	if fa, ok1 := AsFloat64(a); ok1 {
		if fb, ok2 := AsFloat64(b); ok2 {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(AsString(a), AsString(b))
}

// SortStrings returns a freshly sorted copy of ss, in ascending or
// descending lexicographic order.
func SortStrings(ss []string, descending bool) []string {
	out := append([]string(nil), ss...)
	sort.Strings(out)
	if descending {
		reverse(out)
	}
	return out
}

// SortInt64s returns a freshly sorted copy of ns, in ascending or
// descending numeric order.
func SortInt64s(ns []int64, descending bool) []int64 {
	out := append([]int64(nil), ns...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if descending {
		reverseInt64(out)
	}
	return out
}

func reverse(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

func reverseInt64(ns []int64) {
	for i, j := 0, len(ns)-1; i < j; i, j = i+1, j-1 {
		ns[i], ns[j] = ns[j], ns[i]
	}
}
