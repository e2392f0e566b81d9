package foundation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueEqualStructural(t *testing.T) {
	a := VecValue(NewVec(Int(1), String("x"), Keyword("k")))
	b := VecValue(NewVec(Int(1), String("x"), Keyword("k")))
	require.True(t, a.Equal(b))

	c := VecValue(NewVec(Int(1), String("x"), Keyword("other")))
	require.False(t, a.Equal(c))
}

func TestValueEqualAcrossKinds(t *testing.T) {
	require.False(t, Int(1).Equal(Float(1)))
	require.False(t, String("1").Equal(Symbol("1")))
}

func TestValueHashStableForEqualValues(t *testing.T) {
	m1 := NewMap().Set(Keyword("a"), Int(1)).Set(Keyword("b"), Int(2))
	m2 := NewMap().Set(Keyword("b"), Int(2)).Set(Keyword("a"), Int(1))
	require.Equal(t, MapValue(m1).Hash(), MapValue(m2).Hash())
}

func TestFromNativeRoundTrip(t *testing.T) {
	native := map[string]any{
		"count": int64(3),
		"items": []any{int64(1), int64(2)},
	}
	v := FromNative(native)
	m, ok := v.MapVal()
	require.True(t, ok)

	count, ok := m.Get(Keyword("count"))
	require.True(t, ok)
	n, ok := count.Int()
	require.True(t, ok)
	require.Equal(t, int64(3), n)

	itemsVal, ok := m.Get(Keyword("items"))
	require.True(t, ok)
	vec, ok := itemsVal.VecVal()
	require.True(t, ok)
	require.Equal(t, 2, vec.Len())
}

func TestFromNativeUnknownShapeIsNil(t *testing.T) {
	v := FromNative(struct{ X int }{X: 1})
	require.True(t, v.IsNil())
}

func TestEntityRefNative(t *testing.T) {
	id := NewEntityID(5, 2)
	v := EntityRef(id)
	native := v.Native()
	got, ok := native.(EntityID)
	require.True(t, ok)
	require.Equal(t, id, got)
}
