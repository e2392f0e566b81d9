package tick

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

func TestCardinalityRejectsSecondOneToOneLink(t *testing.T) {
	w := store.NewWorld()
	w = w.RegisterRelationship(store.RelationshipSchema{Name: "married-to", Cardinality: store.OneToOne})

	a, w := w.Spawn()
	b, w := w.Spawn()
	c, w := w.Spawn()

	w, err := w.Link(a, b, "married-to")
	require.NoError(t, err)

	_, err = w.Link(a, c, "married-to")
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrCardinality, kind)
}

func TestCardinalityRejectsSecondOneToManyIncoming(t *testing.T) {
	w := store.NewWorld()
	w = w.RegisterRelationship(store.RelationshipSchema{Name: "parent-of", Cardinality: store.OneToMany})

	parentA, w := w.Spawn()
	parentB, w := w.Spawn()
	child, w := w.Spawn()

	w, err := w.Link(parentA, child, "parent-of")
	require.NoError(t, err)

	_, err = w.Link(parentB, child, "parent-of")
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrCardinality, kind)
}
