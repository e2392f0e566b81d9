package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/foundation"
)

func TestSetComponentValidatesSchema(t *testing.T) {
	w := NewWorld()
	w = w.RegisterComponent(ComponentSchema{
		Name:   "health",
		Fields: map[string]TypeSpec{"hp": {Kind: foundation.KindInt}},
	})
	e, w := w.Spawn()

	w, err := w.SetComponent(e, "health", foundation.NewMap().Set(foundation.Keyword("hp"), foundation.Int(10)))
	require.NoError(t, err)

	fields, ok := w.Component(e, "health")
	require.True(t, ok)
	hp, _ := fields.Get(foundation.Keyword("hp"))
	n, _ := hp.Int()
	require.Equal(t, int64(10), n)
}

func TestSetComponentRejectsUnknownField(t *testing.T) {
	w := NewWorld()
	w = w.RegisterComponent(ComponentSchema{
		Name:   "health",
		Fields: map[string]TypeSpec{"hp": {Kind: foundation.KindInt}},
	})
	e, w := w.Spawn()

	_, err := w.SetComponent(e, "health", foundation.NewMap().Set(foundation.Keyword("mp"), foundation.Int(1)))
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrUnknownField, kind)
}

func TestSetComponentRejectsStaleEntity(t *testing.T) {
	w := NewWorld()
	w = w.RegisterComponent(ComponentSchema{Name: "tag", Fields: map[string]TypeSpec{}})
	e, w := w.Spawn()
	w, err := w.Destroy(e)
	require.NoError(t, err)

	_, err = w.SetComponent(e, "tag", foundation.NewMap())
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrStaleEntity, kind)
}

func TestWorldIsPersistentAcrossMutation(t *testing.T) {
	w0 := NewWorld()
	w0 = w0.RegisterComponent(ComponentSchema{
		Name:   "counter",
		Fields: map[string]TypeSpec{"value": {Kind: foundation.KindInt}},
	})
	e, w1 := w0.Spawn()
	w2, err := w1.SetComponent(e, "counter", foundation.NewMap().Set(foundation.Keyword("value"), foundation.Int(1)))
	require.NoError(t, err)

	_, ok := w1.Component(e, "counter")
	require.False(t, ok, "earlier snapshot must not see the later mutation")

	_, ok = w2.Component(e, "counter")
	require.True(t, ok)
}

func TestEntitiesWithIsSortedAndLiveOnly(t *testing.T) {
	w := NewWorld()
	w = w.RegisterComponent(ComponentSchema{Name: "marker", Fields: map[string]TypeSpec{}})
	var ids []foundation.EntityID
	for i := 0; i < 3; i++ {
		var e foundation.EntityID
		e, w = w.Spawn()
		var err error
		w, err = w.SetComponent(e, "marker", foundation.NewMap())
		require.NoError(t, err)
		ids = append(ids, e)
	}
	w, err := w.Destroy(ids[1])
	require.NoError(t, err)

	got := w.EntitiesWith("marker")
	require.Len(t, got, 2)
	require.Equal(t, ids[0], got[0])
	require.Equal(t, ids[2], got[1])
}
