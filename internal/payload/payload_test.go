package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreservesOrderAndKinds(t *testing.T) {
	v, err := Parse([]byte(`{"b": 1, "A": "x", "c": null, "d": true, "e": [1, {"z": 2}]}`))
	require.NoError(t, err)

	obj, ok := v.AsObject()
	require.True(t, ok)
	assert.Equal(t, []string{"b", "A", "c", "d", "e"}, obj.Keys())

	b, _ := obj.Get("b")
	n, ok := b.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 1.0, n)

	c, _ := obj.Get("c")
	assert.True(t, c.IsNull())

	d, _ := obj.Get("d")
	assert.Equal(t, KindBool, d.Kind())

	e, _ := obj.Get("e")
	items, ok := e.AsArray()
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, KindObject, items[1].Kind())
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":}`, `{"a":1} {"b":2}`, `nope`} {
		_, err := Parse([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestCanonical_KeyOrderIrrelevant(t *testing.T) {
	a, err := Parse([]byte(`{"b": 2, "a": {"y": 1, "x": [3, "s"]}}`))
	require.NoError(t, err)
	b, err := Parse([]byte(`{"a": {"x": [3, "s"], "y": 1}, "b": 2}`))
	require.NoError(t, err)

	ca, err := Canonical(a)
	require.NoError(t, err)
	cb, err := Canonical(b)
	require.NoError(t, err)

	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t, `{"a":{"x":[3,"s"],"y":1},"b":2}`, string(ca))
	assert.True(t, a.Equal(b))
}

func TestMarshalJSON_KeepsOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("z", Number(1.5))
	obj.Set("a", String("<ñ>"))
	obj.Set("z", Number(2))

	out, err := ObjectValue(obj).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":2,"a":"<ñ>"}`, string(out))

	// encoding/json HTML-escapes Marshaler output but keeps the order.
	out, err = json.Marshal(ObjectValue(obj))
	require.NoError(t, err)
	assert.Equal(t, `{"z":2,"a":"\u003cñ\u003e"}`, string(out))
}

func TestUnmarshalJSON_RoundTrip(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"k":[1,2]}`), &v))
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"k":[1,2]}`, string(out))
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		15:      "15",
		15.5:    "15.5",
		-3:      "-3",
		0:       "0",
		1e21:    "1e+21",
		1234567: "1234567",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in))
	}
}

func TestNumber_NonFiniteIsNull(t *testing.T) {
	zero := 0.0
	assert.True(t, Number(zero/zero).IsNull())
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"b": 2,
		"a": []any{"x", nil, true},
	})
	require.NoError(t, err)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",null,true],"b":2}`, string(out))

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}
