package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_KeepsOrder(t *testing.T) {
	obj := Object{{"zeta", 1}, {"alpha", "x"}, {"mid", nil}}
	out, err := obj.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"x","mid":null}`, string(out))

	v, ok := obj.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = obj.Get("nope")
	assert.False(t, ok)
}

func TestMarshal_SortsMaps(t *testing.T) {
	out, err := Marshal(map[string]any{"b": true, "a": []any{int64(1), 2.5, "s"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2.5,"s"],"b":true}`, string(out))
}

func TestMarshal_Nested(t *testing.T) {
	inner := Object{{"name", "ada"}}
	out, err := Marshal(Object{{"author", inner}, {"tags", []string{"x", "y"}}, {"none", []int(nil)}})
	require.NoError(t, err)
	assert.Equal(t, `{"author":{"name":"ada"},"tags":["x","y"],"none":[]}`, string(out))
}

func TestMarshal_Strings(t *testing.T) {
	out, err := Marshal("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(out))

	// NFD input normalizes to NFC.
	out, err = Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(out))

	out, err = Marshal("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(out))

	out, err = Marshal(`back\u2028slash`)
	require.NoError(t, err)
	assert.Equal(t, `"back\\u2028slash"`, string(out))
}

func TestMarshal_RejectsNaN(t *testing.T) {
	_, err := Marshal(math.NaN())
	require.Error(t, err)
}

func TestMarshalIndent(t *testing.T) {
	out, err := MarshalIndent(Object{{"a", 1}}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(out))
}

func TestDigest(t *testing.T) {
	a, err := Digest(DomainRecords, map[string]any{"x": 1, "y": "z"})
	require.NoError(t, err)
	b, err := Digest(DomainRecords, map[string]any{"y": "z", "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Digest(DomainSelection, map[string]any{"x": 1, "y": "z"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
