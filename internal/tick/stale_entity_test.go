package tick

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

// TestStaleEntityReferenceAfterDestroyRespawn covers spec.md §8 scenario 3:
// an EntityID captured before a destroy must not refer to whatever entity
// later reuses that index.
func TestStaleEntityReferenceAfterDestroyRespawn(t *testing.T) {
	w := store.NewWorld()
	w = w.RegisterComponent(store.ComponentSchema{Name: "marker", Fields: map[string]store.TypeSpec{}})

	original, w := w.Spawn()
	w, err := w.SetComponent(original, "marker", foundation.NewMap())
	require.NoError(t, err)

	w, err = w.Destroy(original)
	require.NoError(t, err)

	replacement, w := w.Spawn()
	require.Equal(t, original.Index, replacement.Index)
	require.NotEqual(t, original.Generation, replacement.Generation)

	require.False(t, w.Entities.IsAlive(original))
	_, err = w.SetComponent(original, "marker", foundation.NewMap())
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrStaleEntity, kind)

	_, err = w.ComponentChecked(original, "marker")
	require.Error(t, err, "reading through a stale EntityID must fail distinctly from a live entity lacking the component")
	kind, _ = foundation.KindOf(err)
	require.Equal(t, foundation.ErrStaleEntity, kind)

	fields, err := w.ComponentChecked(replacement, "marker")
	require.NoError(t, err)
	_, has := fields.Get(foundation.Keyword("__never_set__"))
	require.False(t, has)

	_, has = w.Component(replacement, "marker")
	require.False(t, has, "the respawned entity must not inherit the destroyed one's component data")
}
