package store

import (
	"github.com/longtable/longtable/internal/foundation"
)

// World is the full immutable snapshot a tick executes against: entity
// liveness, every component instance, and every relationship link. Every
// mutating method returns a new World value; callers chain updates and
// keep the prior World around (for rollback, diffing, or branching)
// without copying unaffected data.
type World struct {
	Tick          uint64
	Entities      EntityStore
	Components    ComponentStore
	Relationships RelationshipStore
}

// NewWorld returns an empty World at tick 0.
func NewWorld() World {
	return World{
		Entities:      NewEntityStore(),
		Components:    NewComponentStore(),
		Relationships: NewRelationshipStore(),
	}
}

// RegisterComponent adds a component schema to the world.
func (w World) RegisterComponent(schema ComponentSchema) World {
	w.Components = w.Components.RegisterSchema(schema)
	return w
}

// RegisterRelationship adds a relationship schema to the world.
func (w World) RegisterRelationship(schema RelationshipSchema) World {
	w.Relationships = w.Relationships.RegisterSchema(schema)
	return w
}

// Spawn allocates a new entity and returns the updated World.
func (w World) Spawn() (foundation.EntityID, World) {
	id, es := w.Entities.Spawn()
	w.Entities = es
	return id, w
}

// Destroy destroys entity, cascading according to each relationship's
// CascadeMode, and purges its component data and remaining links. It
// fails with ErrStaleEntity if entity is not live, or ErrCascadeDenied if
// a CascadeDeny relationship still links to it.
func (w World) Destroy(entity foundation.EntityID) (World, error) {
	if err := w.Entities.CheckLive(entity); err != nil {
		return w, err
	}
	cascaded, err := w.Relationships.CascadeDestroy(entity)
	if err != nil {
		return w, err
	}
	out := w
	out.Relationships = out.Relationships.PurgeEntity(entity)
	out.Components = out.Components.RemoveEntity(entity)
	es, err := out.Entities.Destroy(entity)
	if err != nil {
		return w, err
	}
	out.Entities = es
	for _, child := range cascaded {
		if out.Entities.IsAlive(child) {
			out, err = out.Destroy(child)
			if err != nil {
				return w, err
			}
		}
	}
	return out, nil
}

// SetComponent attaches or replaces component on entity after validating
// against the entity's liveness and the component's schema.
func (w World) SetComponent(entity foundation.EntityID, component string, fields foundation.Map) (World, error) {
	if err := w.Entities.CheckLive(entity); err != nil {
		return w, err
	}
	cs, err := w.Components.Set(entity, component, fields)
	if err != nil {
		return w, err
	}
	w.Components = cs
	return w, nil
}

// SetField sets a single field of entity's component instance.
func (w World) SetField(entity foundation.EntityID, component, field string, val foundation.Value) (World, error) {
	if err := w.Entities.CheckLive(entity); err != nil {
		return w, err
	}
	cs, err := w.Components.SetField(entity, component, field, val)
	if err != nil {
		return w, err
	}
	w.Components = cs
	return w, nil
}

// RemoveComponent detaches component from entity.
func (w World) RemoveComponent(entity foundation.EntityID, component string) World {
	w.Components = w.Components.Remove(entity, component)
	return w
}

// Component returns entity's field map for component, if present. It does
// not distinguish a stale/unknown entity from a live entity simply lacking
// component; callers that need generational safety on the read path should
// use ComponentChecked instead.
func (w World) Component(entity foundation.EntityID, component string) (foundation.Map, bool) {
	return w.Components.Get(entity, component)
}

// ComponentChecked returns entity's field map for component like Component,
// but fails with ErrStaleEntity when entity is not currently live, so a
// read through a stale handle is distinguishable from a live entity that
// simply has no such component.
func (w World) ComponentChecked(entity foundation.EntityID, component string) (foundation.Map, error) {
	if err := w.Entities.CheckLive(entity); err != nil {
		return foundation.Map{}, err
	}
	fields, _ := w.Components.Get(entity, component)
	return fields, nil
}

// Link establishes a relationship link, validating entity liveness and
// schema cardinality.
func (w World) Link(from, to foundation.EntityID, relName string) (World, error) {
	if err := w.Entities.CheckLive(from); err != nil {
		return w, err
	}
	if err := w.Entities.CheckLive(to); err != nil {
		return w, err
	}
	rs, err := w.Relationships.Link(from, to, relName)
	if err != nil {
		return w, err
	}
	w.Relationships = rs
	return w, nil
}

// Unlink removes a relationship link.
func (w World) Unlink(from, to foundation.EntityID, relName string) World {
	w.Relationships = w.Relationships.Unlink(from, to, relName)
	return w
}

// EntitiesWith returns every live entity carrying component.
func (w World) EntitiesWith(component string) []foundation.EntityID {
	all := w.Components.EntitiesWith(component)
	out := make([]foundation.EntityID, 0, len(all))
	for _, e := range all {
		if w.Entities.IsAlive(e) {
			out = append(out, e)
		}
	}
	return out
}

// NextTick returns a copy of w advanced to the next tick number. World
// data is unchanged; this only bumps the counter recorded in history.
func (w World) NextTick() World {
	w.Tick++
	return w
}
