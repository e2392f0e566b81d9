// Package derived implements computed components: values recomputed from a
// VM expression over other component data on a World, memoized per
// (entity, definition) and invalidated only when one of their declared
// dependency components changes.
package derived

import (
	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

// maxDerivedDepth bounds recursive derived-on-derived evaluation so a
// dependency cycle fails fast instead of recursing forever.
const maxDerivedDepth = 64

// Definition declares one derived component: an expression evaluated in an
// environment built from entity's own fields plus any components it
// depends on, producing the derived component's field map.
type Definition struct {
	Component string
	// DependsOn lists the component names this derived component reads.
	// A write to any of them invalidates the cache entry.
	DependsOn []string
	// Expr evaluates, for a given entity, to a map[string]any the cache
	// converts into the derived component's field map. The evaluation
	// environment is built from the entity's dependency components: each
	// dependency component's fields are exposed under its own name as a
	// sub-map, e.g. env["position"]["x"].
	Expr string
}

type cacheKey struct {
	entity    foundation.EntityID
	component string
}

// Cache memoizes derived component values computed against a specific
// World generation. A new Cache should be built (or Invalidate called)
// whenever the underlying World changes in a way that might affect a
// dependency.
type Cache struct {
	vm    *effectvm.VM
	defs  map[string]Definition
	store map[cacheKey]foundation.Map
}

// NewCache returns an empty derived-value cache.
func NewCache(vm *effectvm.VM) *Cache {
	return &Cache{vm: vm, defs: map[string]Definition{}, store: map[cacheKey]foundation.Map{}}
}

// Register adds a derived component definition.
func (c *Cache) Register(def Definition) {
	c.defs[def.Component] = def
}

// Definitions returns every registered derived component definition.
func (c *Cache) Definitions() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	return out
}

// Get computes (or returns the memoized) value of component for entity
// against w. It fails with ErrDerivedCycle if resolving component's
// dependencies recurses into component itself.
func (c *Cache) Get(w store.World, entity foundation.EntityID, component string) (foundation.Map, error) {
	return c.get(w, entity, component, 0, map[string]bool{})
}

func (c *Cache) get(w store.World, entity foundation.EntityID, component string, depth int, visiting map[string]bool) (foundation.Map, error) {
	def, ok := c.defs[component]
	if !ok {
		fields, _ := w.Component(entity, component)
		return fields, nil
	}
	key := cacheKey{entity: entity, component: component}
	if cached, ok := c.store[key]; ok {
		return cached, nil
	}
	if depth > maxDerivedDepth || visiting[component] {
		return foundation.Map{}, foundation.NewErrorf(foundation.ErrDerivedCycle,
			"derived component %q participates in a dependency cycle", component)
	}
	visiting[component] = true
	defer delete(visiting, component)

	env := map[string]any{"self": foundation.EntityRef(entity).Native()}
	for _, dep := range def.DependsOn {
		depFields, err := c.get(w, entity, dep, depth+1, visiting)
		if err != nil {
			return foundation.Map{}, err
		}
		env[dep] = foundation.MapValue(depFields).Native()
	}

	res, err := c.vm.Eval(def.Expr, env)
	if err != nil {
		return foundation.Map{}, foundation.NewErrorf(foundation.ErrVMError, "derived component %q: %v", component, err).WithCause(err)
	}
	val := foundation.FromNative(res)
	fields, _ := val.MapVal()
	c.store[key] = fields
	return fields, nil
}

// Invalidate drops every cached value for entity that transitively depends
// (directly or through another derived component) on changedComponent.
// Call it once per write produced by a tick before any subsequent Get.
func (c *Cache) Invalidate(entity foundation.EntityID, changedComponent string) {
	affected := c.transitiveDependents(changedComponent, map[string]bool{})
	for key := range c.store {
		if key.entity == entity && affected[key.component] {
			delete(c.store, key)
		}
	}
}

// InvalidateAll drops every cached value for entity, regardless of
// dependency (used when an entity is destroyed or spawned).
func (c *Cache) InvalidateAll(entity foundation.EntityID) {
	for key := range c.store {
		if key.entity == entity {
			delete(c.store, key)
		}
	}
}

func (c *Cache) transitiveDependents(component string, seen map[string]bool) map[string]bool {
	if seen[component] {
		return seen
	}
	seen[component] = true
	for name, def := range c.defs {
		for _, dep := range def.DependsOn {
			if dep == component {
				c.transitiveDependents(name, seen)
			}
		}
	}
	return seen
}
