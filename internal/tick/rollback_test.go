package tick

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/longtable/longtable/internal/constraint"
	"github.com/longtable/longtable/internal/derived"
	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/pattern"
	"github.com/longtable/longtable/internal/provenance"
	"github.com/longtable/longtable/internal/rule"
	"github.com/longtable/longtable/internal/store"
)

// TestConstraintAbortRollsBackWholeTick covers spec.md §8 scenario 4: a
// rule pushes a value out of bounds, the registered Abort constraint
// catches it post-quiescence, and the tick's World is discarded entirely
// rather than committed with the violation.
func TestConstraintAbortRollsBackWholeTick(t *testing.T) {
	w := store.NewWorld()
	w = w.RegisterComponent(store.ComponentSchema{
		Name:   "health",
		Fields: map[string]store.TypeSpec{"hp": {Kind: foundation.KindInt}},
	})
	e, w := w.Spawn()
	w, err := w.SetComponent(e, "health", foundation.NewMap().Set(foundation.Keyword("hp"), foundation.Int(5)))
	require.NoError(t, err)

	damagePattern, err := pattern.Compile(pattern.Pattern{
		Name: "damage",
		Clauses: []pattern.Clause{
			pattern.ComponentClause{EntityVar: "e", Component: "health", Fields: map[string]pattern.FieldTerm{"hp": pattern.BindTerm("hp")}},
		},
	})
	require.NoError(t, err)

	healthBoundsPattern, err := pattern.Compile(pattern.Pattern{
		Name: "health-bounds",
		Clauses: []pattern.Clause{
			pattern.ComponentClause{EntityVar: "e", Component: "health", Fields: map[string]pattern.FieldTerm{"hp": pattern.BindTerm("hp")}},
		},
	})
	require.NoError(t, err)

	vm := effectvm.New()
	engine := rule.NewEngine(vm, 100, nil, nil)
	engine.Register(&rule.CompiledRule{
		Name: "apply-damage", Salience: 0, Pattern: damagePattern, Once: true,
		Effects: []rule.EffectSpec{{Kind: effectvm.EffectSetField, EntityVar: "e", Component: "health", Field: "hp", ValueExpr: "hp - 100"}},
	})

	checker := constraint.NewChecker(vm)
	checker.Register(constraint.Constraint{
		Name: "hp-non-negative", Pattern: healthBoundsPattern, Check: "hp >= 0", OnFail: constraint.Abort,
	})

	dc := derived.NewCache(vm)
	prov := provenance.NewTracker(provenance.Standard)
	executor := NewExecutor(engine, dc, checker, prov, nil, nil)

	result, err := executor.Tick(w, nil, nil)
	require.NoError(t, err)
	require.Equal(t, Aborted, result.Status)
	require.NotEmpty(t, result.Violations)
	require.Equal(t, w, result.World, "aborted tick must return the unchanged pre-tick World")

	fields, ok := result.World.Component(e, "health")
	require.True(t, ok)
	hp, _ := fields.Get(foundation.Keyword("hp"))
	n, _ := hp.Int()
	require.Equal(t, int64(5), n, "hp must be unchanged after rollback")
}

func TestConstraintWarnCommitsAnyway(t *testing.T) {
	w := store.NewWorld()
	w = w.RegisterComponent(store.ComponentSchema{
		Name:   "health",
		Fields: map[string]store.TypeSpec{"hp": {Kind: foundation.KindInt}},
	})
	e, w := w.Spawn()
	w, err := w.SetComponent(e, "health", foundation.NewMap().Set(foundation.Keyword("hp"), foundation.Int(5)))
	require.NoError(t, err)

	healthBoundsPattern, err := pattern.Compile(pattern.Pattern{
		Name: "health-bounds",
		Clauses: []pattern.Clause{
			pattern.ComponentClause{EntityVar: "e", Component: "health", Fields: map[string]pattern.FieldTerm{"hp": pattern.BindTerm("hp")}},
		},
	})
	require.NoError(t, err)

	vm := effectvm.New()
	engine := rule.NewEngine(vm, 100, nil, nil)
	checker := constraint.NewChecker(vm)
	checker.Register(constraint.Constraint{
		Name: "hp-high-warn", Pattern: healthBoundsPattern, Check: "hp >= 10", OnFail: constraint.Warn,
	})

	dc := derived.NewCache(vm)
	prov := provenance.NewTracker(provenance.Standard)
	executor := NewExecutor(engine, dc, checker, prov, nil, nil)

	result, err := executor.Tick(w, nil, nil)
	require.NoError(t, err)
	require.Equal(t, Committed, result.Status)
	require.NotEmpty(t, result.Violations)
}
