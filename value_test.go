package weft

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDict(t *testing.T, pairs ...Value) *Dict {
	t.Helper()
	require.Zero(t, len(pairs)%2)

	d := NewDict()
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, d.Set(pairs[i], pairs[i+1]))
	}

	return d
}

func TestValueString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", NullValue(), "null"},
		{"true", BoolValue(true), "true"},
		{"int", IntValue(42), "42"},
		{"negative int", IntValue(-7), "-7"},
		{"float keeps point", FloatValue(1.0), "1.0"},
		{"float", FloatValue(3.14), "3.14"},
		{"inf", FloatValue(math.Inf(1)), "inf"},
		{"neg inf", FloatValue(math.Inf(-1)), "-inf"},
		{"nan", FloatValue(math.NaN()), "nan"},
		{"string is raw", StringValue("a b"), "a b"},
		{"list", ListValue(IntValue(1), IntValue(2)), "[1, 2]"},
		{
			name: "nested strings are quoted",
			v:    ListValue(IntValue(1), StringValue("a")),
			want: "[1, 'a']",
		},
		{
			name: "dict",
			v:    DictValue(mustDict(t, StringValue("a"), IntValue(1), StringValue("b"), ListValue())),
			want: "{'a': 1, 'b': []}",
		},
		{"empty list", ListValue(), "[]"},
		{"invalid sentinel", Value{}, "<unresolved>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.v.String())
		})
	}
}

func TestValueEqual(t *testing.T) {
	t.Parallel()

	// Lists compare in order.
	assert.True(t, ListValue(IntValue(1), IntValue(2)).Equal(ListValue(IntValue(1), IntValue(2))))
	assert.False(t, ListValue(IntValue(1), IntValue(2)).Equal(ListValue(IntValue(2), IntValue(1))))

	// Dicts compare regardless of insertion order.
	ab := DictValue(mustDict(t, StringValue("a"), IntValue(1), StringValue("b"), IntValue(2)))
	ba := DictValue(mustDict(t, StringValue("b"), IntValue(2), StringValue("a"), IntValue(1)))
	assert.True(t, ab.Equal(ba))

	// Kind matters.
	assert.False(t, IntValue(1).Equal(FloatValue(1)))
	assert.False(t, StringValue("1").Equal(IntValue(1)))

	// NaN equals NaN so cached results stay stable.
	assert.True(t, FloatValue(math.NaN()).Equal(FloatValue(math.NaN())))
}

func TestCacheKeyStructural(t *testing.T) {
	t.Parallel()

	ab := DictValue(mustDict(t, StringValue("a"), IntValue(1), StringValue("b"), IntValue(2)))
	ba := DictValue(mustDict(t, StringValue("b"), IntValue(2), StringValue("a"), IntValue(1)))

	k1, err := cacheKey("f", []Value{ab})
	require.NoError(t, err)
	k2, err := cacheKey("f", []Value{ba})
	require.NoError(t, err)

	// Dict hashing is order-insensitive.
	assert.Equal(t, k1, k2)

	l1, err := cacheKey("f", []Value{ListValue(IntValue(1), IntValue(2))})
	require.NoError(t, err)
	l2, err := cacheKey("f", []Value{ListValue(IntValue(2), IntValue(1))})
	require.NoError(t, err)

	// List hashing is order-sensitive.
	assert.NotEqual(t, l1, l2)

	// The resolver name participates in the identity.
	g1, err := cacheKey("g", []Value{ab})
	require.NoError(t, err)
	assert.NotEqual(t, k1, g1)

	// Ints and their string spellings hash apart.
	i1, err := cacheKey("f", []Value{IntValue(1)})
	require.NoError(t, err)
	s1, err := cacheKey("f", []Value{StringValue("1")})
	require.NoError(t, err)
	assert.NotEqual(t, i1, s1)
}

func TestDictReplacementKeepsOrder(t *testing.T) {
	t.Parallel()

	d := NewDict()
	require.NoError(t, d.Set(StringValue("a"), IntValue(1)))
	require.NoError(t, d.Set(StringValue("b"), IntValue(2)))
	require.NoError(t, d.Set(StringValue("a"), IntValue(3)))

	require.Equal(t, 2, d.Len())

	keys := d.Keys()
	assert.Equal(t, "a", keys[0].Str())
	assert.Equal(t, "b", keys[1].Str())

	v, ok := d.Get(StringValue("a"))
	require.True(t, ok)
	assert.Equal(t, int64(3), v.Int())
}

func TestDictRejectsUnhashableKeys(t *testing.T) {
	t.Parallel()

	d := NewDict()
	err := d.Set(ListValue(IntValue(1)), IntValue(1))
	require.Error(t, err)

	var typeErr *TypeError

	assert.ErrorAs(t, err, &typeErr)
}

func TestToGoRoundTrip(t *testing.T) {
	t.Parallel()

	v := ListValue(
		NullValue(),
		BoolValue(true),
		IntValue(3),
		FloatValue(0.5),
		StringValue("s"),
		DictValue(mustDict(t, StringValue("k"), IntValue(1))),
	)

	want := []any{nil, true, int64(3), 0.5, "s", map[any]any{"k": int64(1)}}

	if diff := cmp.Diff(want, v.ToGo()); diff != "" {
		t.Errorf("ToGo mismatch (-want +got):\n%s", diff)
	}

	back := FromGo([]any{nil, true, 3, 0.5, "s"})
	assert.True(t, back.Equal(ListValue(NullValue(), BoolValue(true), IntValue(3), FloatValue(0.5), StringValue("s"))))
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "int", KindInt.String())
	assert.Equal(t, "node", KindNode.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
