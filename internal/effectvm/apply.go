package effectvm

import (
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

// Write records one (entity, component, field) value change produced by
// applying an Effect. The tick executor feeds these into the provenance
// tracker and the derived cache's invalidation index.
type Write struct {
	Entity    foundation.EntityID
	Component string
	Field     string
	Old       foundation.Value
	New       foundation.Value
}

// Apply applies a single Effect to w. vars resolves entity-variable names
// (as bound by the pattern matcher, or introduced by an earlier Spawn
// effect in the same ordered list) to EntityIDs. It returns the updated
// World, the updated variable environment (Spawn adds a binding), and the
// field-level writes the effect produced.
func Apply(w store.World, vars map[string]foundation.Value, eff Effect) (store.World, map[string]foundation.Value, []Write, error) {
	resolve := func(name string) (foundation.EntityID, error) {
		v, ok := vars[name]
		if !ok {
			return foundation.EntityID{}, foundation.NewErrorf(foundation.ErrEffectFailed, "effect references unbound variable %q", name)
		}
		e, ok := v.Entity()
		if !ok {
			return foundation.EntityID{}, foundation.NewErrorf(foundation.ErrEffectFailed, "variable %q is not bound to an entity", name)
		}
		return e, nil
	}

	switch eff.Kind {
	case EffectSet:
		entity, err := resolve(eff.Entity)
		if err != nil {
			return w, vars, nil, err
		}
		fields, _ := eff.Value.MapVal()
		before, _ := w.Component(entity, eff.Component)
		nw, err := w.SetComponent(entity, eff.Component, fields)
		if err != nil {
			return w, vars, nil, err
		}
		return nw, vars, diffFields(entity, eff.Component, before, fields), nil

	case EffectSetField:
		entity, err := resolve(eff.Entity)
		if err != nil {
			return w, vars, nil, err
		}
		before, _ := w.Component(entity, eff.Component)
		oldVal, hadOld := before.Get(foundation.Keyword(eff.Field))
		if !hadOld {
			oldVal = foundation.Nil()
		}
		nw, err := w.SetField(entity, eff.Component, eff.Field, eff.Value)
		if err != nil {
			return w, vars, nil, err
		}
		if oldVal.Equal(eff.Value) {
			return nw, vars, nil, nil
		}
		return nw, vars, []Write{{Entity: entity, Component: eff.Component, Field: eff.Field, Old: oldVal, New: eff.Value}}, nil

	case EffectRemove:
		entity, err := resolve(eff.Entity)
		if err != nil {
			return w, vars, nil, err
		}
		nw := w.RemoveComponent(entity, eff.Component)
		return nw, vars, nil, nil

	case EffectSpawn:
		id, nw := w.Spawn()
		if !eff.Value.IsNil() {
			comps, _ := eff.Value.MapVal()
			var err error
			for _, ck := range comps.Keys() {
				name, _ := ck.KeywordName()
				fieldsVal, _ := comps.Get(ck)
				fields, _ := fieldsVal.MapVal()
				nw, err = nw.SetComponent(id, name, fields)
				if err != nil {
					return w, vars, nil, err
				}
			}
		}
		newVars := cloneVars(vars)
		newVars[eff.Entity] = foundation.EntityRef(id)
		return nw, newVars, nil, nil

	case EffectDestroy:
		entity, err := resolve(eff.Entity)
		if err != nil {
			return w, vars, nil, err
		}
		nw, err := w.Destroy(entity)
		if err != nil {
			return w, vars, nil, err
		}
		return nw, vars, nil, nil

	case EffectLink:
		from, err := resolve(eff.Entity)
		if err != nil {
			return w, vars, nil, err
		}
		to, err := resolve(eff.Other)
		if err != nil {
			return w, vars, nil, err
		}
		nw, err := w.Link(from, to, eff.Relationship)
		if err != nil {
			return w, vars, nil, err
		}
		return nw, vars, nil, nil

	case EffectUnlink:
		from, err := resolve(eff.Entity)
		if err != nil {
			return w, vars, nil, err
		}
		to, err := resolve(eff.Other)
		if err != nil {
			return w, vars, nil, err
		}
		nw := w.Unlink(from, to, eff.Relationship)
		return nw, vars, nil, nil

	case EffectTag:
		entity, err := resolve(eff.Entity)
		if err != nil {
			return w, vars, nil, err
		}
		nw, err := w.SetComponent(entity, eff.Tag, foundation.NewMap())
		if err != nil {
			return w, vars, nil, err
		}
		return nw, vars, []Write{{Entity: entity, Component: eff.Tag}}, nil

	default:
		return w, vars, nil, foundation.NewErrorf(foundation.ErrEffectFailed, "unknown effect kind %v", eff.Kind)
	}
}

// ApplyAll applies effects in order, threading the variable environment
// (so a Spawn early in the list can be referenced by a later Link, say)
// and accumulating every write produced along the way. A failing effect
// aborts the whole list and ApplyAll returns the World it was given,
// unchanged, so no partially-applied state escapes.
func ApplyAll(w store.World, vars map[string]foundation.Value, effects []Effect) (store.World, []Write, error) {
	cur := w
	var all []Write
	for _, eff := range effects {
		nw, newVars, writes, err := Apply(cur, vars, eff)
		if err != nil {
			return w, all, err
		}
		cur = nw
		vars = newVars
		all = append(all, writes...)
	}
	return cur, all, nil
}

func diffFields(entity foundation.EntityID, component string, before, after foundation.Map) []Write {
	var out []Write
	for _, k := range after.Keys() {
		name, _ := k.KeywordName()
		newVal, _ := after.Get(k)
		oldVal, hadOld := before.Get(k)
		if !hadOld {
			oldVal = foundation.Nil()
		}
		if !oldVal.Equal(newVal) {
			out = append(out, Write{Entity: entity, Component: component, Field: name, Old: oldVal, New: newVal})
		}
	}
	return out
}

func cloneVars(v map[string]foundation.Value) map[string]foundation.Value {
	out := make(map[string]foundation.Value, len(v)+1)
	for k, vv := range v {
		out[k] = vv
	}
	return out
}
