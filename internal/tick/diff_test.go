package tick

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
	"github.com/longtable/longtable/internal/timeline"
)

// TestDiffGranularity covers spec.md §8 scenario 5: diffing two World
// snapshots at component vs field granularity.
func TestDiffGranularity(t *testing.T) {
	w0 := store.NewWorld()
	w0 = w0.RegisterComponent(store.ComponentSchema{
		Name: "position",
		Fields: map[string]store.TypeSpec{
			"x": {Kind: foundation.KindInt},
			"y": {Kind: foundation.KindInt},
		},
	})
	e, w0 := w0.Spawn()
	w0, err := w0.SetComponent(e, "position", foundation.NewMap().
		Set(foundation.Keyword("x"), foundation.Int(0)).
		Set(foundation.Keyword("y"), foundation.Int(0)))
	require.NoError(t, err)

	w1, err := w0.SetField(e, "position", "x", foundation.Int(5))
	require.NoError(t, err)

	newEntity, w1 := w1.Spawn()

	componentDiff := timeline.Diff(w0, w1, timeline.ComponentGranularity)
	require.Len(t, componentDiff.ChangedComponents, 1)
	require.Empty(t, componentDiff.ChangedComponents[0].Fields, "component granularity must not include field detail")
	require.Equal(t, []foundation.EntityID{newEntity}, componentDiff.AddedEntities)

	fieldDiff := timeline.Diff(w0, w1, timeline.FieldGranularity)
	require.Len(t, fieldDiff.ChangedComponents, 1)
	require.Len(t, fieldDiff.ChangedComponents[0].Fields, 1)
	change := fieldDiff.ChangedComponents[0].Fields[0]
	require.Equal(t, "x", change.Field)
	oldVal, _ := change.Old.Int()
	newVal, _ := change.New.Int()
	require.Equal(t, int64(0), oldVal)
	require.Equal(t, int64(5), newVal)
}

func TestDiffDetectsRemovedEntity(t *testing.T) {
	w0 := store.NewWorld()
	e, w0 := w0.Spawn()
	w1, err := w0.Destroy(e)
	require.NoError(t, err)

	diff := timeline.Diff(w0, w1, timeline.ComponentGranularity)
	require.Equal(t, []foundation.EntityID{e}, diff.RemovedEntities)
	require.Empty(t, diff.AddedEntities)
}
