package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feeddb/feeddb/jsonval"
)

func mustNew(t *testing.T, def map[string]any) Mutator {
	t.Helper()
	m, err := New(def)
	require.NoError(t, err)
	return m
}

func TestRemove(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "remove", "field": "delete"})
	obj := jsonval.Object{"delete": "x", "keep": "y"}
	require.NoError(t, m.Mutate(obj))
	assert.NotContains(t, obj, "delete")
	assert.Equal(t, "y", obj["keep"])
}

func TestRemoveMissingField(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "remove", "field": "nope"})
	assert.Error(t, m.Mutate(jsonval.Object{}))
}

func TestRename(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "rename", "field": "old", "new_name": "new"})
	obj := jsonval.Object{"old": "v"}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "v", obj["new"])
	assert.NotContains(t, obj, "old")
}

func TestAppend(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "append", "field": "name", "append": "!"})
	obj := jsonval.Object{"name": "john"}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "john!", obj["name"])
}

func TestSet(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "set", "field": "flag", "value": true})
	obj := jsonval.Object{}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, true, obj["flag"])
}

func TestSplit(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "split", "field": "csv", "separator": ","})
	obj := jsonval.Object{"csv": "a,b,c"}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, []any{"a", "b", "c"}, obj["csv"])
}

func TestSplitEmptySeparatorRejected(t *testing.T) {
	_, err := New(map[string]any{"type": "split", "field": "csv", "separator": ""})
	assert.Error(t, err)
}

func TestJoinArrayForm(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "join", "field": "parts", "separator": "-"})
	obj := jsonval.Object{"parts": []any{"a", "b", "c"}}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "a-b-c", obj["parts"])
}

func TestJoinFieldListForm(t *testing.T) {
	m := mustNew(t, map[string]any{
		"type": "join", "field": []any{"name", "surname"},
		"separator": " ", "new_field": "full_name",
	})
	obj := jsonval.Object{"name": "John", "surname": "Doe"}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "John Doe", obj["full_name"])
}

func TestTrim(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "trim", "field": "s", "from": "left", "total": float64(3)})
	obj := jsonval.Object{"s": "abcdef"}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "abc", obj["s"])
}

func TestTrimRight(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "trim", "field": "s", "from": "right", "total": float64(3)})
	obj := jsonval.Object{"s": "abcdef"}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "def", obj["s"])
}

func TestTrimSpace(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "trim_space", "field": "s"})
	obj := jsonval.Object{"s": "  abc  "}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "abc", obj["s"])
}

func TestUppercaseLowercase(t *testing.T) {
	up := mustNew(t, map[string]any{"type": "uppercase", "field": "s"})
	lo := mustNew(t, map[string]any{"type": "lowercase", "field": "s"})
	assert.Equal(t, "uppercase", up.Type())
	assert.Equal(t, "lowercase", lo.Type())

	obj := jsonval.Object{"s": "MiXeD"}
	require.NoError(t, up.Mutate(obj))
	assert.Equal(t, "MIXED", obj["s"])
	require.NoError(t, lo.Mutate(obj))
	assert.Equal(t, "mixed", obj["s"])
}

func TestSortStringsAndInts(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "sort", "field": "ss", "descending": false})
	obj := jsonval.Object{"ss": []any{"c", "a", "b"}}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, []any{"a", "b", "c"}, obj["ss"])

	mi := mustNew(t, map[string]any{"type": "sort", "field": "ns", "descending": true})
	obj2 := jsonval.Object{"ns": []any{float64(1), float64(3), float64(2)}}
	require.NoError(t, mi.Mutate(obj2))
	assert.Equal(t, []any{int64(3), int64(2), int64(1)}, obj2["ns"])
}

func TestSortEmptyArray(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "sort", "field": "ss", "descending": false})
	assert.Error(t, m.Mutate(jsonval.Object{"ss": []any{}}))
}

func TestGrok(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "grok", "field": "line", "pattern": "%{WORD:first} %{WORD:second}"})
	obj := jsonval.Object{"line": "hello world"}
	require.NoError(t, m.Mutate(obj))
	assert.Equal(t, "hello", obj["first"])
	assert.Equal(t, "world", obj["second"])
}

func TestGrokNumericCaptureStaysString(t *testing.T) {
	m := mustNew(t, map[string]any{"type": "grok", "field": "line", "pattern": "%{POSINT:port}"})
	obj := jsonval.Object{"line": "8080"}
	require.NoError(t, m.Mutate(obj))
	assert.IsType(t, "", obj["port"])
	assert.Equal(t, "8080", obj["port"])
}

func TestGrokPlainInput(t *testing.T) {
	m, err := New(map[string]any{"type": "grok", "field": PlainInputField, "pattern": "%{WORD:first} %{WORD:second}"})
	require.NoError(t, err)
	g, ok := AsGrok(m)
	require.True(t, ok)

	obj, err := g.MutatePlainInput([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello", obj["first"])
	assert.Equal(t, "world", obj["second"])
}

func TestUnknownMutatorType(t *testing.T) {
	_, err := New(map[string]any{"type": "bogus"})
	assert.Error(t, err)
}
