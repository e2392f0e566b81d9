package store

import (
	"sort"

	"github.com/longtable/longtable/internal/foundation"
)

// Cardinality constrains how many links of a relationship kind an entity
// may participate in.
type Cardinality int

const (
	ManyToMany Cardinality = iota
	OneToMany
	ManyToOne
	OneToOne
)

// CascadeMode controls what happens to a relationship's links when one of
// the linked entities is destroyed.
type CascadeMode int

const (
	// CascadeNone neither destroys the other end nor blocks the destroy;
	// the destroyed entity's links are removed (World.Destroy purges every
	// link involving it, whatever the mode).
	CascadeNone CascadeMode = iota
	// CascadeUnlink removes the links involving the destroyed entity.
	CascadeUnlink
	// CascadeDestroy recursively destroys entities on the other end of
	// the link.
	CascadeDestroy
	// CascadeDeny refuses the destroy outright while links exist.
	CascadeDeny
)

// RelationshipSchema declares a relationship kind's cardinality and
// cascade behavior.
type RelationshipSchema struct {
	Name        string
	Cardinality Cardinality
	Cascade     CascadeMode
}

// RelationshipStore holds a bidirectional index of links per relationship
// kind. It is copy-on-write like ComponentStore.
type RelationshipStore struct {
	schemas map[string]RelationshipSchema
	forward map[string]map[foundation.EntityID]foundation.Set // rel -> from -> {to}
	reverse map[string]map[foundation.EntityID]foundation.Set // rel -> to -> {from}
}

// NewRelationshipStore returns an empty store.
func NewRelationshipStore() RelationshipStore {
	return RelationshipStore{
		schemas: map[string]RelationshipSchema{},
		forward: map[string]map[foundation.EntityID]foundation.Set{},
		reverse: map[string]map[foundation.EntityID]foundation.Set{},
	}
}

func (rs RelationshipStore) shallowClone() RelationshipStore {
	out := RelationshipStore{
		schemas: make(map[string]RelationshipSchema, len(rs.schemas)),
		forward: make(map[string]map[foundation.EntityID]foundation.Set, len(rs.forward)),
		reverse: make(map[string]map[foundation.EntityID]foundation.Set, len(rs.reverse)),
	}
	for k, v := range rs.schemas {
		out.schemas[k] = v
	}
	for k, v := range rs.forward {
		out.forward[k] = v
	}
	for k, v := range rs.reverse {
		out.reverse[k] = v
	}
	return out
}

// RegisterSchema adds or replaces a relationship's schema.
func (rs RelationshipStore) RegisterSchema(schema RelationshipSchema) RelationshipStore {
	out := rs.shallowClone()
	out.schemas[schema.Name] = schema
	return out
}

func (rs RelationshipStore) Schema(name string) (RelationshipSchema, bool) {
	s, ok := rs.schemas[name]
	return s, ok
}

// Related returns the entities from is linked to under relName.
func (rs RelationshipStore) Related(from foundation.EntityID, relName string) []foundation.EntityID {
	side, ok := rs.forward[relName]
	if !ok {
		return nil
	}
	set, ok := side[from]
	if !ok {
		return nil
	}
	out := make([]foundation.EntityID, 0, set.Len())
	for _, v := range set.Items() {
		if e, ok := v.Entity(); ok {
			out = append(out, e)
		}
	}
	sortEntities(out)
	return out
}

// RelatedReverse returns the entities linked to "to" under relName.
func (rs RelationshipStore) RelatedReverse(to foundation.EntityID, relName string) []foundation.EntityID {
	side, ok := rs.reverse[relName]
	if !ok {
		return nil
	}
	set, ok := side[to]
	if !ok {
		return nil
	}
	out := make([]foundation.EntityID, 0, set.Len())
	for _, v := range set.Items() {
		if e, ok := v.Entity(); ok {
			out = append(out, e)
		}
	}
	sortEntities(out)
	return out
}

// Link adds a from->to link under relName, enforcing cardinality: a
// ManyToOne/OneToOne relationship rejects a second outgoing link from the
// same entity, and OneToMany/OneToOne rejects a second incoming link to
// the same entity.
func (rs RelationshipStore) Link(from, to foundation.EntityID, relName string) (RelationshipStore, error) {
	schema, ok := rs.schemas[relName]
	if !ok {
		return rs, foundation.NewErrorf(foundation.ErrUnknownRelationship, "relationship %q is not registered", relName).WithEntity(relName)
	}
	if schema.Cardinality == ManyToOne || schema.Cardinality == OneToOne {
		if existing := rs.Related(from, relName); len(existing) > 0 && !(len(existing) == 1 && existing[0] == to) {
			return rs, foundation.NewErrorf(foundation.ErrCardinality, "relationship %q does not allow %s to have more than one outgoing link", relName, from).WithEntity(relName)
		}
	}
	if schema.Cardinality == OneToMany || schema.Cardinality == OneToOne {
		if existing := rs.RelatedReverse(to, relName); len(existing) > 0 && !(len(existing) == 1 && existing[0] == from) {
			return rs, foundation.NewErrorf(foundation.ErrCardinality, "relationship %q does not allow %s to have more than one incoming link", relName, to).WithEntity(relName)
		}
	}
	out := rs.shallowClone()
	out.forward[relName] = cloneSide(out.forward[relName])
	out.forward[relName][from] = out.forward[relName][from].Add(foundation.EntityRef(to))
	out.reverse[relName] = cloneSide(out.reverse[relName])
	out.reverse[relName][to] = out.reverse[relName][to].Add(foundation.EntityRef(from))
	return out, nil
}

// Unlink removes a from->to link under relName, if present.
func (rs RelationshipStore) Unlink(from, to foundation.EntityID, relName string) RelationshipStore {
	if _, ok := rs.schemas[relName]; !ok {
		return rs
	}
	out := rs.shallowClone()
	if side, ok := out.forward[relName]; ok {
		newSide := cloneSide(side)
		newSide[from] = newSide[from].Remove(foundation.EntityRef(to))
		out.forward[relName] = newSide
	}
	if side, ok := out.reverse[relName]; ok {
		newSide := cloneSide(side)
		newSide[to] = newSide[to].Remove(foundation.EntityRef(from))
		out.reverse[relName] = newSide
	}
	return out
}

// CascadeDestroy computes, for every relationship schema with
// CascadeDestroy, the set of entities that must also be destroyed when
// entity is destroyed, and for CascadeDeny returns an error if any link
// still involves entity.
func (rs RelationshipStore) CascadeDestroy(entity foundation.EntityID) ([]foundation.EntityID, error) {
	var toDestroy []foundation.EntityID
	for name, schema := range rs.schemas {
		related := rs.Related(entity, name)
		reverseRelated := rs.RelatedReverse(entity, name)
		if schema.Cascade == CascadeDeny && (len(related) > 0 || len(reverseRelated) > 0) {
			return nil, foundation.NewErrorf(foundation.ErrCascadeDenied, "entity %s still has %q links", entity, name).WithEntity(name)
		}
		if schema.Cascade == CascadeDestroy {
			toDestroy = append(toDestroy, related...)
			toDestroy = append(toDestroy, reverseRelated...)
		}
	}
	return toDestroy, nil
}

// PurgeEntity removes every link involving entity across all relationship
// kinds (used once an entity has actually been destroyed).
func (rs RelationshipStore) PurgeEntity(entity foundation.EntityID) RelationshipStore {
	out := rs.shallowClone()
	for name := range out.schemas {
		for _, to := range rs.Related(entity, name) {
			out = out.Unlink(entity, to, name)
		}
		for _, from := range rs.RelatedReverse(entity, name) {
			out = out.Unlink(from, entity, name)
		}
	}
	return out
}

// Names returns every registered relationship name, sorted.
func (rs RelationshipStore) Names() []string {
	out := make([]string, 0, len(rs.schemas))
	for name := range rs.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func cloneSide(m map[foundation.EntityID]foundation.Set) map[foundation.EntityID]foundation.Set {
	out := make(map[foundation.EntityID]foundation.Set, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
