// Package rule implements the production rule engine: compiled rules with
// salience, refraction, and a run-to-quiescence scheduler over compiled
// patterns. Rule guards, bindings-to-effect expressions, and constraint
// checks are all evaluated by the external effectvm.VM; this package owns
// only the matching/firing control flow, per spec.md's "opaque bytecode
// VM" boundary.
package rule

import (
	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/pattern"
)

// EffectSpec describes one effect a rule body produces, parameterized by
// pattern variable names and expr-lang expressions evaluated against the
// firing's bindings. The surface rule language that produces these (out of
// scope per spec.md §1) is expected to compile directly to this shape.
type EffectSpec struct {
	Kind effectvm.EffectKind

	// EntityVar names the bound variable the effect targets. For Spawn it
	// instead names the binding the newly spawned entity is introduced
	// under, usable by later effects in the same rule's Effects list.
	EntityVar string

	Component string // Set / SetField / Remove / Tag
	Field     string // SetField

	// ValueExpr is the expr-lang source evaluated against the firing's
	// bindings to produce a SetField effect's value.
	ValueExpr string

	// Fields holds, for a Set effect, one value expression per field name,
	// evaluated to build the component's whole field map.
	Fields map[string]string

	// SpawnComponents holds, for a Spawn effect, one field map (component
	// name -> field name -> value expression) per component the spawned
	// entity should carry from birth.
	SpawnComponents map[string]map[string]string

	Relationship string // Link / Unlink
	OtherVar     string // Link / Unlink: the other bound entity variable
	Tag          string // Tag: the marker component name
}

// CompiledRule is one production rule: a pattern to match, an optional
// guard expression further filtering the matcher's bindings, and an
// ordered effect list applied when the rule fires.
type CompiledRule struct {
	Name     string
	Salience int
	Once     bool
	// Order is the rule's stable registration index, used to break
	// salience ties; assigned by Engine.Register.
	Order int

	Pattern *pattern.CompiledPattern
	// Guard, if non-empty, is an expr-lang boolean expression evaluated
	// against each candidate binding; bindings for which it is false (or
	// references an unbound variable) do not produce an activation.
	Guard   string
	Effects []EffectSpec
}
