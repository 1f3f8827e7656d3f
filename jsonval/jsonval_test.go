package jsonval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	obj, err := Decode([]byte(`{"a":1,"b":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])
	assert.Equal(t, "x", obj["b"])
}

func TestDecodeNotObject(t *testing.T) {
	_, err := Decode([]byte(`[1,2,3]`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestNestedValue(t *testing.T) {
	v := map[string]any{"a": map[string]any{"b": "c"}}
	assert.Equal(t, "c", NestedValue("a.b", v))
	assert.Nil(t, NestedValue("a.missing", v))
	assert.Nil(t, NestedValue("missing.b", v))
}

func TestEqualAndCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		eq   bool
		cmp  int
	}{
		{"equal numbers", float64(1), "1", true, 0},
		{"numeric order", float64(1), float64(2), false, -1},
		{"string fallback", "abc", "abd", false, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.eq, Equal(tt.a, tt.b))
			assert.Equal(t, tt.cmp, Compare(tt.a, tt.b))
		})
	}
}

func TestSortStrings(t *testing.T) {
	in := []string{"b", "a", "c"}
	assert.Equal(t, []string{"a", "b", "c"}, SortStrings(in, false))
	assert.Equal(t, []string{"c", "b", "a"}, SortStrings(in, true))
	assert.Equal(t, []string{"b", "a", "c"}, in, "SortStrings must not mutate its input")
}
