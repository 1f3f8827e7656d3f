package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndApply(t *testing.T) {
	def := []byte(`{
		"name": "uppercase_name",
		"channel": [
			{"type": "uppercase", "field": "name"},
			{"type": "set", "field": "seen", "value": true}
		]
	}`)
	ch, err := Parse(def, nil)
	require.NoError(t, err)
	assert.Equal(t, "uppercase_name", ch.Name)
	assert.Len(t, ch.Mutators, 2)

	out, ok := ch.Apply([]byte(`{"name":"john"}`), false, nil)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"JOHN","seen":true}`, string(out))
}

func TestParseDropsMalformedMutator(t *testing.T) {
	def := []byte(`{
		"name": "partial",
		"channel": [
			{"type": "bogus"},
			{"type": "set", "field": "ok", "value": true}
		]
	}`)
	ch, err := Parse(def, nil)
	require.NoError(t, err)
	assert.Len(t, ch.Mutators, 1)
}

func TestApplyEmptyChannel(t *testing.T) {
	ch := &Channel{Name: "empty"}
	_, ok := ch.Apply([]byte(`{}`), false, nil)
	assert.False(t, ok)
}

func TestApplyNotJSONObject(t *testing.T) {
	def := []byte(`{"name":"x","channel":[{"type":"set","field":"a","value":1}]}`)
	ch, err := Parse(def, nil)
	require.NoError(t, err)

	_, ok := ch.Apply([]byte(`[1,2,3]`), false, nil)
	assert.False(t, ok)
}

func TestApplyOmitErrorsAbortsOnMutatorFailure(t *testing.T) {
	def := []byte(`{
		"name": "strict",
		"channel": [
			{"type": "remove", "field": "missing"},
			{"type": "set", "field": "reached", "value": true}
		]
	}`)
	ch, err := Parse(def, nil)
	require.NoError(t, err)

	_, ok := ch.Apply([]byte(`{}`), true, nil)
	assert.False(t, ok)
}

func TestApplyContinuesPastMutatorFailureWhenNotOmitting(t *testing.T) {
	def := []byte(`{
		"name": "lenient",
		"channel": [
			{"type": "remove", "field": "missing"},
			{"type": "set", "field": "reached", "value": true}
		]
	}`)
	ch, err := Parse(def, nil)
	require.NoError(t, err)

	out, ok := ch.Apply([]byte(`{}`), false, nil)
	require.True(t, ok)
	assert.JSONEq(t, `{"reached":true}`, string(out))
}

func TestApplyPlainInputGrok(t *testing.T) {
	def := []byte(`{
		"name": "parse_log",
		"channel": [
			{"type": "grok", "field": "_plain_input", "pattern": "%{WORD:first} %{WORD:second}"},
			{"type": "join", "field": ["first", "second"], "separator": ", ", "new_field": "full"}
		]
	}`)
	ch, err := Parse(def, nil)
	require.NoError(t, err)

	out, ok := ch.Apply([]byte("hello world"), false, nil)
	require.True(t, ok)
	assert.JSONEq(t, `{"first":"hello","second":"world","full":"hello, world"}`, string(out))
}
