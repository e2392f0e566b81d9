// Package pattern implements Longtable's declarative pattern matcher: each
// tick, every compiled pattern is re-evaluated against the whole World
// (batch re-matching, not an incremental Rete network).
package pattern

import (
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

// FieldTerm is one field-position term inside a component clause: either
// a binding to a pattern variable, a literal value to match exactly, or a
// wildcard that matches anything without binding.
type FieldTerm struct {
	Bind    string // variable name, empty if not a binding
	Literal foundation.Value
	IsLit   bool
	Wild    bool
}

// BindTerm creates a field term that binds the field's value to varName.
func BindTerm(varName string) FieldTerm { return FieldTerm{Bind: varName} }

// LitTerm creates a field term that must equal val.
func LitTerm(val foundation.Value) FieldTerm { return FieldTerm{Literal: val, IsLit: true} }

// WildTerm creates a field term that matches any value.
func WildTerm() FieldTerm { return FieldTerm{Wild: true} }

// Clause is one line of a pattern: a component match, a relationship
// match, or a negation of either.
type Clause interface{ isClause() }

// ComponentClause matches entities carrying Component, binding EntityVar
// to the entity and each named field per Fields.
type ComponentClause struct {
	EntityVar string
	Component string
	Fields    map[string]FieldTerm
}

func (ComponentClause) isClause() {}

// RelationshipClause matches a relationship link between two
// (possibly already bound) entity variables.
type RelationshipClause struct {
	From string
	Rel  string
	To   string
}

func (RelationshipClause) isClause() {}

// Negated wraps a clause that must NOT match given the bindings
// established so far; every variable it references must already be
// bound by an earlier clause (an unbound variable inside a negation is
// an UnboundNegation error at compile time).
type Negated struct {
	Inner Clause
}

func (Negated) isClause() {}

// Pattern is an ordered list of clauses sharing a variable namespace.
type Pattern struct {
	Name    string
	Clauses []Clause
}

// Bindings maps pattern variable names to the Values they were matched
// to (entity variables bind to an EntityRef Value).
type Bindings map[string]foundation.Value

// Clone returns a shallow copy of b safe to extend independently.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Hash produces a stable content hash of the bindings, used as half of a
// rule engine refraction key. Bindings are sorted by variable name first
// so that equivalent binding sets hash identically regardless of map
// iteration order.
func (b Bindings) Hash() uint64 {
	names := make([]foundation.Value, 0, len(b))
	for k := range b {
		names = append(names, foundation.String(k))
	}
	sortStrings(names)
	vec := make([]foundation.Value, 0, len(b)*2)
	for _, k := range names {
		name, _ := k.Str()
		vec = append(vec, k, b[name])
	}
	return foundation.VecValue(foundation.NewVec(vec...)).Hash()
}

// Env converts Bindings into a plain variable environment suitable for an
// expr-lang evaluation: the shape rule guards/bodies and constraint
// check-expressions are run against.
func (b Bindings) Env() map[string]any {
	out := make(map[string]any, len(b))
	for k, v := range b {
		out[k] = v.Native()
	}
	return out
}

func sortStrings(vals []foundation.Value) {
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0; j-- {
			a, _ := vals[j-1].Str()
			b2, _ := vals[j].Str()
			if a <= b2 {
				break
			}
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
}

// CompiledPattern is a Pattern that has passed variable-binding
// validation: every negated clause's variables are bound by an earlier
// positive clause.
type CompiledPattern struct {
	Pattern Pattern
}

// Compile validates p and returns a CompiledPattern.
func Compile(p Pattern) (*CompiledPattern, error) {
	bound := map[string]bool{}
	for _, c := range p.Clauses {
		switch clause := c.(type) {
		case ComponentClause:
			bound[clause.EntityVar] = true
			for _, term := range clause.Fields {
				if term.Bind != "" {
					bound[term.Bind] = true
				}
			}
		case RelationshipClause:
			bound[clause.From] = true
			bound[clause.To] = true
		case Negated:
			if err := checkNegationBound(clause.Inner, bound); err != nil {
				return nil, err
			}
		}
	}
	return &CompiledPattern{Pattern: p}, nil
}

func checkNegationBound(c Clause, bound map[string]bool) error {
	switch clause := c.(type) {
	case ComponentClause:
		if !bound[clause.EntityVar] {
			return foundation.NewErrorf(foundation.ErrUnboundNegation, "negated clause references unbound variable %q", clause.EntityVar)
		}
		for _, term := range clause.Fields {
			if term.Bind != "" && !bound[term.Bind] {
				return foundation.NewErrorf(foundation.ErrUnboundNegation, "negated clause references unbound variable %q", term.Bind)
			}
		}
	case RelationshipClause:
		if !bound[clause.From] {
			return foundation.NewErrorf(foundation.ErrUnboundNegation, "negated clause references unbound variable %q", clause.From)
		}
		if !bound[clause.To] {
			return foundation.NewErrorf(foundation.ErrUnboundNegation, "negated clause references unbound variable %q", clause.To)
		}
	}
	return nil
}

// Match re-evaluates the pattern against w from scratch, returning one
// Bindings set per satisfying combination of entities/values. Entity
// iteration within a single clause is index-ordered, so the result is
// deterministic for a fixed world and pattern; duplicate binding sets
// (possible when relationship/component clauses revisit the same
// combination through different join paths) are removed.
func (cp *CompiledPattern) Match(w store.World) []Bindings {
	raw := matchClauses(w, cp.Pattern.Clauses, 0, Bindings{})
	return dedupeBindings(raw)
}

func dedupeBindings(rows []Bindings) []Bindings {
	seen := map[uint64][]Bindings{}
	out := make([]Bindings, 0, len(rows))
	for _, row := range rows {
		h := row.Hash()
		dup := false
		for _, prior := range seen[h] {
			if bindingsEqual(prior, row) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], row)
		out = append(out, row)
	}
	return out
}

func bindingsEqual(a, b Bindings) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !ov.Equal(v) {
			return false
		}
	}
	return true
}

func matchClauses(w store.World, clauses []Clause, idx int, partial Bindings) []Bindings {
	if idx >= len(clauses) {
		return []Bindings{partial}
	}
	clause := clauses[idx]
	var results []Bindings
	switch c := clause.(type) {
	case ComponentClause:
		for _, e := range w.EntitiesWith(c.Component) {
			fields, _ := w.Component(e, c.Component)
			extended, ok := bindEntityClause(partial, c, e, fields)
			if !ok {
				continue
			}
			results = append(results, matchClauses(w, clauses, idx+1, extended)...)
		}
	case RelationshipClause:
		results = append(results, matchRelationshipClause(w, clauses, idx, c, partial)...)
	case Negated:
		sub := matchSingle(w, c.Inner, partial)
		if len(sub) == 0 {
			results = append(results, matchClauses(w, clauses, idx+1, partial)...)
		}
	}
	return results
}

func matchSingle(w store.World, c Clause, partial Bindings) []Bindings {
	switch clause := c.(type) {
	case ComponentClause:
		if boundVal, ok := partial[clause.EntityVar]; ok {
			e, _ := boundVal.Entity()
			fields, has := w.Component(e, clause.Component)
			if !has {
				return nil
			}
			extended, ok := bindEntityClause(partial, clause, e, fields)
			if !ok {
				return nil
			}
			return []Bindings{extended}
		}
		var out []Bindings
		for _, e := range w.EntitiesWith(clause.Component) {
			fields, _ := w.Component(e, clause.Component)
			extended, ok := bindEntityClause(partial, clause, e, fields)
			if ok {
				out = append(out, extended)
			}
		}
		return out
	case RelationshipClause:
		return matchRelationshipClause(w, nil, 0, clause, partial)
	}
	return nil
}

func bindEntityClause(partial Bindings, c ComponentClause, e foundation.EntityID, fields foundation.Map) (Bindings, bool) {
	extended := partial.Clone()
	entityVal := foundation.EntityRef(e)
	if existing, ok := extended[c.EntityVar]; ok {
		if !existing.Equal(entityVal) {
			return nil, false
		}
	} else {
		extended[c.EntityVar] = entityVal
	}
	for fieldName, term := range c.Fields {
		val, present := fields.Get(foundation.Keyword(fieldName))
		if !present {
			val = foundation.Nil()
		}
		switch {
		case term.Wild:
			continue
		case term.IsLit:
			if !val.Equal(term.Literal) {
				return nil, false
			}
		case term.Bind != "":
			if existing, ok := extended[term.Bind]; ok {
				if !existing.Equal(val) {
					return nil, false
				}
			} else {
				extended[term.Bind] = val
			}
		}
	}
	return extended, true
}

func matchRelationshipClause(w store.World, clauses []Clause, idx int, c RelationshipClause, partial Bindings) []Bindings {
	fromBound, fromOk := partial[c.From]
	toBound, toOk := partial[c.To]

	tryPair := func(from, to foundation.EntityID) []Bindings {
		extended := partial.Clone()
		extended[c.From] = foundation.EntityRef(from)
		extended[c.To] = foundation.EntityRef(to)
		if clauses == nil {
			return []Bindings{extended}
		}
		return matchClauses(w, clauses, idx+1, extended)
	}

	var results []Bindings
	switch {
	case fromOk && toOk:
		from, _ := fromBound.Entity()
		to, _ := toBound.Entity()
		for _, related := range w.Relationships.Related(from, c.Rel) {
			if related == to {
				results = append(results, tryPair(from, to)...)
			}
		}
	case fromOk:
		from, _ := fromBound.Entity()
		for _, to := range w.Relationships.Related(from, c.Rel) {
			results = append(results, tryPair(from, to)...)
		}
	case toOk:
		to, _ := toBound.Entity()
		for _, from := range w.Relationships.RelatedReverse(to, c.Rel) {
			results = append(results, tryPair(from, to)...)
		}
	default:
		for _, from := range w.Entities.Live() {
			for _, to := range w.Relationships.Related(from, c.Rel) {
				results = append(results, tryPair(from, to)...)
			}
		}
	}
	return results
}
