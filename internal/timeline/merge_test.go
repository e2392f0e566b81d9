package timeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

func buildMergeWorlds(t *testing.T) (base, ours, theirs store.World, e foundation.EntityID) {
	t.Helper()
	base = store.NewWorld()
	base = base.RegisterComponent(store.ComponentSchema{
		Name: "position",
		Fields: map[string]store.TypeSpec{
			"x": {Kind: foundation.KindInt},
			"y": {Kind: foundation.KindInt},
		},
	})
	e, base = base.Spawn()
	var err error
	base, err = base.SetComponent(e, "position", foundation.NewMap().
		Set(foundation.Keyword("x"), foundation.Int(0)).
		Set(foundation.Keyword("y"), foundation.Int(0)))
	require.NoError(t, err)

	ours = base
	theirs = base
	return base, ours, theirs, e
}

func TestMergeNonConflictingFieldsUnion(t *testing.T) {
	base, ours, theirs, e := buildMergeWorlds(t)
	var err error
	ours, err = ours.SetField(e, "position", "x", foundation.Int(10))
	require.NoError(t, err)
	theirs, err = theirs.SetField(e, "position", "y", foundation.Int(20))
	require.NoError(t, err)

	merged, err := Merge(Union, base, ours, theirs, nil)
	require.NoError(t, err)

	fields, ok := merged.Component(e, "position")
	require.True(t, ok)
	x, _ := fields.Get(foundation.Keyword("x"))
	y, _ := fields.Get(foundation.Keyword("y"))
	xv, _ := x.Int()
	yv, _ := y.Int()
	require.Equal(t, int64(10), xv)
	require.Equal(t, int64(20), yv)
}

func TestMergeUnionConflictError(t *testing.T) {
	base, ours, theirs, e := buildMergeWorlds(t)
	var err error
	ours, err = ours.SetField(e, "position", "x", foundation.Int(10))
	require.NoError(t, err)
	theirs, err = theirs.SetField(e, "position", "x", foundation.Int(99))
	require.NoError(t, err)

	_, err = Merge(Union, base, ours, theirs, nil)
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrMergeConflict, kind)
}

func TestMergePreferOursTakesOursOnConflict(t *testing.T) {
	base, ours, theirs, e := buildMergeWorlds(t)
	var err error
	ours, err = ours.SetField(e, "position", "x", foundation.Int(10))
	require.NoError(t, err)
	theirs, err = theirs.SetField(e, "position", "x", foundation.Int(99))
	require.NoError(t, err)

	merged, err := Merge(PreferOurs, base, ours, theirs, nil)
	require.NoError(t, err)
	fields, ok := merged.Component(e, "position")
	require.True(t, ok)
	x, _ := fields.Get(foundation.Keyword("x"))
	xv, _ := x.Int()
	require.Equal(t, int64(10), xv)
}

func TestMergePreferTheirsTakesTheirsOnConflict(t *testing.T) {
	base, ours, theirs, e := buildMergeWorlds(t)
	var err error
	ours, err = ours.SetField(e, "position", "x", foundation.Int(10))
	require.NoError(t, err)
	theirs, err = theirs.SetField(e, "position", "x", foundation.Int(99))
	require.NoError(t, err)

	merged, err := Merge(PreferTheirs, base, ours, theirs, nil)
	require.NoError(t, err)
	fields, ok := merged.Component(e, "position")
	require.True(t, ok)
	x, _ := fields.Get(foundation.Keyword("x"))
	xv, _ := x.Int()
	require.Equal(t, int64(99), xv)
}

func TestMergeCustomStrategyInvokesResolver(t *testing.T) {
	base, ours, theirs, e := buildMergeWorlds(t)
	var err error
	ours, err = ours.SetField(e, "position", "x", foundation.Int(10))
	require.NoError(t, err)
	theirs, err = theirs.SetField(e, "position", "x", foundation.Int(99))
	require.NoError(t, err)

	resolve := func(entity foundation.EntityID, component, field string, base, ours, theirs foundation.Value) foundation.Value {
		oi, _ := ours.Int()
		ti, _ := theirs.Int()
		return foundation.Int(oi + ti)
	}

	merged, err := Merge(Custom, base, ours, theirs, resolve)
	require.NoError(t, err)
	fields, ok := merged.Component(e, "position")
	require.True(t, ok)
	x, _ := fields.Get(foundation.Keyword("x"))
	xv, _ := x.Int()
	require.Equal(t, int64(109), xv)
}

func TestMergeOnlyAliveOnBothSidesIsReconciled(t *testing.T) {
	base, ours, theirs, e := buildMergeWorlds(t)
	var err error
	ours, err = ours.SetField(e, "position", "x", foundation.Int(10))
	require.NoError(t, err)
	theirs, err = theirs.Destroy(e)
	require.NoError(t, err)

	merged, err := Merge(Union, base, ours, theirs, nil)
	require.NoError(t, err)

	fields, ok := merged.Component(e, "position")
	require.True(t, ok)
	x, _ := fields.Get(foundation.Keyword("x"))
	xv, _ := x.Int()
	require.Equal(t, int64(10), xv)
}
