package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/foundation"
)

func TestRelationshipCardinalityOneToOneRejection(t *testing.T) {
	w := NewWorld()
	w = w.RegisterRelationship(RelationshipSchema{Name: "spouse", Cardinality: OneToOne})

	a, w := w.Spawn()
	b, w := w.Spawn()
	c, w := w.Spawn()

	w, err := w.Link(a, b, "spouse")
	require.NoError(t, err)

	_, err = w.Link(a, c, "spouse")
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrCardinality, kind)
}

func TestRelationshipCardinalityManyToOneAllowsSharedTarget(t *testing.T) {
	w := NewWorld()
	w = w.RegisterRelationship(RelationshipSchema{Name: "owner", Cardinality: ManyToOne})

	a, w := w.Spawn()
	b, w := w.Spawn()
	c, w := w.Spawn()

	w, err := w.Link(a, c, "owner")
	require.NoError(t, err)
	w, err = w.Link(b, c, "owner")
	require.NoError(t, err)

	require.ElementsMatch(t, []foundation.EntityID{a, b}, w.Relationships.RelatedReverse(c, "owner"))
}

func TestCascadeDenyBlocksDestroy(t *testing.T) {
	w := NewWorld()
	w = w.RegisterRelationship(RelationshipSchema{Name: "locked-by", Cardinality: ManyToMany, Cascade: CascadeDeny})

	a, w := w.Spawn()
	b, w := w.Spawn()
	w, err := w.Link(a, b, "locked-by")
	require.NoError(t, err)

	_, err = w.Destroy(a)
	require.Error(t, err)
	kind, _ := foundation.KindOf(err)
	require.Equal(t, foundation.ErrCascadeDenied, kind)
}

func TestCascadeDestroyRecurses(t *testing.T) {
	w := NewWorld()
	w = w.RegisterRelationship(RelationshipSchema{Name: "owns", Cardinality: ManyToMany, Cascade: CascadeDestroy})

	parent, w := w.Spawn()
	child, w := w.Spawn()
	w, err := w.Link(parent, child, "owns")
	require.NoError(t, err)

	w, err = w.Destroy(parent)
	require.NoError(t, err)
	require.False(t, w.Entities.IsAlive(child))
}
