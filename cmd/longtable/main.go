// Command longtable is an informative CLI driver: it loads the built-in
// "counter to 10" scenario (spec.md §8, scenario 1), runs it to
// quiescence, and prints the tick result and provenance trail. It is not
// the surface DSL/REPL described in spec.md §1 as out of scope — just
// enough of a harness to exercise the kernel end to end, the way the
// teacher's examples/*/main.go files exercise mbflow's executor.
package main

import (
	"fmt"
	"os"

	"github.com/longtable/longtable/internal/constraint"
	"github.com/longtable/longtable/internal/derived"
	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/infra/config"
	"github.com/longtable/longtable/internal/infra/logger"
	"github.com/longtable/longtable/internal/infra/metrics"
	"github.com/longtable/longtable/internal/infra/observer"
	"github.com/longtable/longtable/internal/pattern"
	"github.com/longtable/longtable/internal/provenance"
	"github.com/longtable/longtable/internal/rule"
	"github.com/longtable/longtable/internal/store"
	"github.com/longtable/longtable/internal/tick"
	"github.com/longtable/longtable/internal/timeline"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	fmt.Println("=== Longtable: counter-to-10 ===")

	w := store.NewWorld()
	w = w.RegisterComponent(store.ComponentSchema{
		Name: "counter",
		Fields: map[string]store.TypeSpec{
			"value": {Kind: foundation.KindInt},
		},
	})
	w = w.RegisterComponent(store.ComponentSchema{Name: "done", Fields: map[string]store.TypeSpec{}})

	entity, w := w.Spawn()
	var err error
	w, err = w.SetComponent(entity, "counter", foundation.NewMap().Set(foundation.Keyword("value"), foundation.Int(0)))
	if err != nil {
		fmt.Fprintln(os.Stderr, "setup failed:", err)
		os.Exit(1)
	}

	incrementPattern, err := pattern.Compile(pattern.Pattern{
		Name: "increment",
		Clauses: []pattern.Clause{
			pattern.ComponentClause{
				EntityVar: "e",
				Component: "counter",
				Fields:    map[string]pattern.FieldTerm{"value": pattern.BindTerm("v")},
			},
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pattern compile failed:", err)
		os.Exit(1)
	}

	donePattern, err := pattern.Compile(pattern.Pattern{
		Name: "mark-done",
		Clauses: []pattern.Clause{
			pattern.ComponentClause{
				EntityVar: "e",
				Component: "counter",
				Fields:    map[string]pattern.FieldTerm{"value": pattern.BindTerm("v")},
			},
			pattern.Negated{Inner: pattern.ComponentClause{EntityVar: "e", Component: "done"}},
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pattern compile failed:", err)
		os.Exit(1)
	}

	mc := metrics.NewCollector()
	hub := observer.NewHub()
	go hub.Run()

	vm := effectvm.New()
	engine := rule.NewEngine(vm, cfg.MaxRuleFires, mc, hub)
	engine.Register(&rule.CompiledRule{
		Name:     "increment",
		Salience: 10,
		Pattern:  incrementPattern,
		Guard:    "v < 10",
		Effects: []rule.EffectSpec{
			{Kind: effectvm.EffectSetField, EntityVar: "e", Component: "counter", Field: "value", ValueExpr: "v + 1"},
		},
	})
	engine.Register(&rule.CompiledRule{
		Name:     "mark-done",
		Salience: 0,
		Pattern:  donePattern,
		Guard:    "v >= 10",
		Effects: []rule.EffectSpec{
			{Kind: effectvm.EffectTag, EntityVar: "e", Tag: "done"},
		},
	})

	dc := derived.NewCache(vm)
	checker := constraint.NewChecker(vm)
	prov := provenance.NewTracker(cfg.ProvenanceVerbosity)
	executor := tick.NewExecutor(engine, dc, checker, prov, mc, hub)
	executor.SetBranch("main")

	tl := timeline.NewTimeline("main", cfg.HistorySize)

	result, err := executor.Tick(w, nil, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tick failed:", err)
		os.Exit(1)
	}
	if result.Status != tick.Committed {
		fmt.Println("tick aborted:", result.Violations)
		os.Exit(1)
	}

	tl.Push(timeline.Snapshot{TickID: result.World.Tick, World: result.World, Summary: "counter-to-10"})

	final, _ := result.World.Component(entity, "counter")
	value, _ := final.Get(foundation.Keyword("value"))
	_, hasDone := result.World.Component(entity, "done")

	fmt.Printf("tick committed: tick_id=%d fires=%d\n", result.World.Tick, len(result.Fired))
	fmt.Printf("counter.value=%s done=%v\n", value.String(), hasDone)

	chain := prov.WhyChain(entity, "counter", "value", 3)
	fmt.Println("why(counter.value):")
	for _, link := range chain {
		fmt.Printf("  rule=%s tick=%d bindings=%v\n", link.Rule, link.Tick, link.Bindings)
	}

	tickMetrics, ruleMetrics := mc.Snapshot()
	fmt.Printf("metrics: committed=%d aborted=%d\n", tickMetrics.CommittedCount, tickMetrics.AbortedCount)
	for name, m := range ruleMetrics {
		fmt.Printf("  rule=%s fires=%d\n", name, m.FireCount)
	}
}
