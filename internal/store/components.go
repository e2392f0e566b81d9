package store

import (
	"sort"

	"github.com/longtable/longtable/internal/foundation"
)

// TypeSpec describes a field's declared type for schema validation,
// mirroring the closed type-descriptor set used to validate component and
// relationship fields.
type TypeSpec struct {
	Kind     foundation.Kind
	Elem     *TypeSpec // for Vec/Set
	ValElem  *TypeSpec // for Map values (Elem holds the key type)
	Optional bool
	Any      bool
}

// Check reports whether val satisfies ts.
func (ts TypeSpec) Check(val foundation.Value) bool {
	if ts.Any {
		return true
	}
	if val.IsNil() {
		return ts.Optional
	}
	if val.Kind() != ts.Kind {
		return false
	}
	switch ts.Kind {
	case foundation.KindVec:
		if ts.Elem == nil {
			return true
		}
		vec, _ := val.VecVal()
		for _, item := range vec.Items() {
			if !ts.Elem.Check(item) {
				return false
			}
		}
	case foundation.KindSet:
		if ts.Elem == nil {
			return true
		}
		set, _ := val.SetVal()
		for _, item := range set.Items() {
			if !ts.Elem.Check(item) {
				return false
			}
		}
	case foundation.KindMap:
		if ts.Elem == nil && ts.ValElem == nil {
			return true
		}
		m, _ := val.MapVal()
		for _, k := range m.Keys() {
			if ts.Elem != nil && !ts.Elem.Check(k) {
				return false
			}
			v, _ := m.Get(k)
			if ts.ValElem != nil && !ts.ValElem.Check(v) {
				return false
			}
		}
	}
	return true
}

// ComponentSchema declares the field shape of a component kind.
type ComponentSchema struct {
	Name   string
	Fields map[string]TypeSpec
}

// Validate checks fields against the schema: every non-optional field
// must be present with the right type, and no undeclared field may
// appear.
func (cs ComponentSchema) Validate(fields foundation.Map) error {
	for name, spec := range cs.Fields {
		val, ok := fields.Get(foundation.Keyword(name))
		if !ok {
			if spec.Optional {
				continue
			}
			return foundation.NewErrorf(foundation.ErrMissingField, "component %q missing required field %q", cs.Name, name).WithEntity(cs.Name)
		}
		if !spec.Check(val) {
			return foundation.NewErrorf(foundation.ErrTypeMismatch, "component %q field %q has wrong type", cs.Name, name).WithEntity(cs.Name)
		}
	}
	for _, key := range fields.Keys() {
		name, ok := key.KeywordName()
		if !ok {
			return foundation.NewErrorf(foundation.ErrInvalidFieldMap, "component %q field keys must be keywords", cs.Name).WithEntity(cs.Name)
		}
		if _, declared := cs.Fields[name]; !declared {
			return foundation.NewErrorf(foundation.ErrUnknownField, "component %q has no field %q", cs.Name, name).WithEntity(cs.Name)
		}
	}
	return nil
}

// ComponentStore holds, for every registered component kind, the set of
// entities carrying it and their field values. It is copy-on-write: every
// mutation returns a new ComponentStore sharing unaffected entries with
// the receiver.
type ComponentStore struct {
	schemas map[string]ComponentSchema
	data    map[string]map[foundation.EntityID]foundation.Map
}

// NewComponentStore returns an empty store.
func NewComponentStore() ComponentStore {
	return ComponentStore{
		schemas: map[string]ComponentSchema{},
		data:    map[string]map[foundation.EntityID]foundation.Map{},
	}
}

func (cs ComponentStore) shallowClone() ComponentStore {
	out := ComponentStore{
		schemas: make(map[string]ComponentSchema, len(cs.schemas)),
		data:    make(map[string]map[foundation.EntityID]foundation.Map, len(cs.data)),
	}
	for k, v := range cs.schemas {
		out.schemas[k] = v
	}
	for k, v := range cs.data {
		out.data[k] = v
	}
	return out
}

// RegisterSchema adds or replaces a component's schema.
func (cs ComponentStore) RegisterSchema(schema ComponentSchema) ComponentStore {
	out := cs.shallowClone()
	out.schemas[schema.Name] = schema
	return out
}

// Schema looks up a registered component schema.
func (cs ComponentStore) Schema(name string) (ComponentSchema, bool) {
	s, ok := cs.schemas[name]
	return s, ok
}

// Get returns the field map for entity's instance of component, if any.
func (cs ComponentStore) Get(entity foundation.EntityID, component string) (foundation.Map, bool) {
	inner, ok := cs.data[component]
	if !ok {
		return foundation.Map{}, false
	}
	fields, ok := inner[entity]
	return fields, ok
}

// Has reports whether entity carries component.
func (cs ComponentStore) Has(entity foundation.EntityID, component string) bool {
	_, ok := cs.Get(entity, component)
	return ok
}

// Set validates fields against component's schema and attaches them to
// entity, returning a new ComponentStore.
func (cs ComponentStore) Set(entity foundation.EntityID, component string, fields foundation.Map) (ComponentStore, error) {
	schema, ok := cs.schemas[component]
	if !ok {
		return cs, foundation.NewErrorf(foundation.ErrUnknownComponent, "component %q is not registered", component).WithEntity(component)
	}
	if err := schema.Validate(fields); err != nil {
		return cs, err
	}
	out := cs.shallowClone()
	inner := cloneInner(out.data[component])
	inner[entity] = fields
	out.data[component] = inner
	return out, nil
}

// SetField sets a single field on an existing component instance,
// creating the instance with just that field if it did not already
// exist. The result is validated against the schema as a whole.
func (cs ComponentStore) SetField(entity foundation.EntityID, component, field string, val foundation.Value) (ComponentStore, error) {
	existing, _ := cs.Get(entity, component)
	updated := existing.Set(foundation.Keyword(field), val)
	return cs.Set(entity, component, updated)
}

// Remove detaches component from entity, if present.
func (cs ComponentStore) Remove(entity foundation.EntityID, component string) ComponentStore {
	inner, ok := cs.data[component]
	if !ok {
		return cs
	}
	if _, present := inner[entity]; !present {
		return cs
	}
	out := cs.shallowClone()
	newInner := cloneInner(inner)
	delete(newInner, entity)
	out.data[component] = newInner
	return out
}

// RemoveEntity detaches every component from entity (used on destroy).
func (cs ComponentStore) RemoveEntity(entity foundation.EntityID) ComponentStore {
	out := cs.shallowClone()
	for component, inner := range out.data {
		if _, present := inner[entity]; present {
			newInner := cloneInner(inner)
			delete(newInner, entity)
			out.data[component] = newInner
		}
	}
	return out
}

// EntitiesWith returns every entity currently carrying component, ordered
// by EntityID so that repeated reads of the same World (and therefore
// pattern matches built from them) are deterministic.
func (cs ComponentStore) EntitiesWith(component string) []foundation.EntityID {
	inner := cs.data[component]
	out := make([]foundation.EntityID, 0, len(inner))
	for e := range inner {
		out = append(out, e)
	}
	sortEntities(out)
	return out
}

func sortEntities(ids []foundation.EntityID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Index != ids[j].Index {
			return ids[i].Index < ids[j].Index
		}
		return ids[i].Generation < ids[j].Generation
	})
}

// Names returns every registered component name, sorted.
func (cs ComponentStore) Names() []string {
	out := make([]string, 0, len(cs.schemas))
	for name := range cs.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetUnchecked attaches fields to entity's component instance without
// schema validation. It exists for reconstructing a ComponentStore from a
// serialized snapshot, whose wire format does not carry schemas (those are
// re-registered by application code at startup); ordinary mutation always
// goes through Set.
func (cs ComponentStore) SetUnchecked(entity foundation.EntityID, component string, fields foundation.Map) ComponentStore {
	out := cs.shallowClone()
	inner := cloneInner(out.data[component])
	inner[entity] = fields
	out.data[component] = inner
	return out
}

func cloneInner(m map[foundation.EntityID]foundation.Map) map[foundation.EntityID]foundation.Map {
	out := make(map[foundation.EntityID]foundation.Map, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
