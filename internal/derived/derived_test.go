package derived

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

func buildPositionWorld(t *testing.T) (store.World, foundation.EntityID) {
	t.Helper()
	w := store.NewWorld()
	w = w.RegisterComponent(store.ComponentSchema{
		Name: "position",
		Fields: map[string]store.TypeSpec{
			"x": {Kind: foundation.KindInt},
			"y": {Kind: foundation.KindInt},
		},
	})
	e, w := w.Spawn()
	w, err := w.SetComponent(e, "position", foundation.NewMap().
		Set(foundation.Keyword("x"), foundation.Int(3)).
		Set(foundation.Keyword("y"), foundation.Int(4)))
	require.NoError(t, err)
	return w, e
}

func TestDerivedComputesFromDependency(t *testing.T) {
	w, e := buildPositionWorld(t)
	vm := effectvm.New()
	cache := NewCache(vm)
	cache.Register(Definition{
		Component: "distance",
		DependsOn: []string{"position"},
		Expr:      `{"value": position.x * position.x + position.y * position.y}`,
	})

	fields, err := cache.Get(w, e, "distance")
	require.NoError(t, err)
	v, ok := fields.Get(foundation.Keyword("value"))
	require.True(t, ok)
	n, _ := v.Int()
	require.Equal(t, int64(25), n)
}

func TestDerivedIsMemoizedUntilInvalidated(t *testing.T) {
	w, e := buildPositionWorld(t)
	vm := effectvm.New()
	cache := NewCache(vm)
	cache.Register(Definition{
		Component: "distance",
		DependsOn: []string{"position"},
		Expr:      `{"value": position.x + position.y}`,
	})

	first, err := cache.Get(w, e, "distance")
	require.NoError(t, err)
	v, _ := first.Get(foundation.Keyword("value"))
	n, _ := v.Int()
	require.Equal(t, int64(7), n)

	w2, err := w.SetField(e, "position", "x", foundation.Int(100))
	require.NoError(t, err)

	stale, err := cache.Get(w2, e, "distance")
	require.NoError(t, err)
	v2, _ := stale.Get(foundation.Keyword("value"))
	n2, _ := v2.Int()
	require.Equal(t, int64(7), n2, "cache must still return the memoized value before Invalidate")

	cache.Invalidate(e, "position")
	fresh, err := cache.Get(w2, e, "distance")
	require.NoError(t, err)
	v3, _ := fresh.Get(foundation.Keyword("value"))
	n3, _ := v3.Int()
	require.Equal(t, int64(104), n3)
}

func TestDerivedCycleDetection(t *testing.T) {
	w, e := buildPositionWorld(t)
	vm := effectvm.New()
	cache := NewCache(vm)
	cache.Register(Definition{Component: "a", DependsOn: []string{"b"}, Expr: `{"value": 1}`})
	cache.Register(Definition{Component: "b", DependsOn: []string{"a"}, Expr: `{"value": 1}`})

	_, err := cache.Get(w, e, "a")
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrDerivedCycle, kind)
}

func TestDerivedTransitiveInvalidation(t *testing.T) {
	w, e := buildPositionWorld(t)
	vm := effectvm.New()
	cache := NewCache(vm)
	cache.Register(Definition{
		Component: "magnitude",
		DependsOn: []string{"position"},
		Expr:      `{"value": position.x + position.y}`,
	})
	cache.Register(Definition{
		Component: "doubled",
		DependsOn: []string{"magnitude"},
		Expr:      `{"value": magnitude.value * 2}`,
	})

	first, err := cache.Get(w, e, "doubled")
	require.NoError(t, err)
	v, _ := first.Get(foundation.Keyword("value"))
	n, _ := v.Int()
	require.Equal(t, int64(14), n)

	w2, err := w.SetField(e, "position", "x", foundation.Int(10))
	require.NoError(t, err)
	cache.Invalidate(e, "position")

	fresh, err := cache.Get(w2, e, "doubled")
	require.NoError(t, err)
	v2, _ := fresh.Get(foundation.Keyword("value"))
	n2, _ := v2.Int()
	require.Equal(t, int64(28), n2)
}
