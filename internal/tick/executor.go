// Package tick orchestrates a single tick: apply inputs, run the rule
// engine to quiescence, invalidate derived state, check constraints, and
// commit or roll back atomically.
package tick

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/longtable/longtable/internal/constraint"
	"github.com/longtable/longtable/internal/derived"
	"github.com/longtable/longtable/internal/effectvm"
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/infra/metrics"
	"github.com/longtable/longtable/internal/infra/observer"
	"github.com/longtable/longtable/internal/provenance"
	"github.com/longtable/longtable/internal/rule"
	"github.com/longtable/longtable/internal/store"
)

// Status reports the outcome of one tick.
type Status int

const (
	Committed Status = iota
	Aborted
)

// Executor wires together the rule engine, derived cache, constraint
// checker, and provenance tracker into the per-tick pipeline described by
// spec.md §4.L. It holds no World itself; each Tick call is given the
// pre-tick World explicitly and returns the post-tick one.
type Executor struct {
	Engine     *rule.Engine
	Derived    *derived.Cache
	Checker    *constraint.Checker
	Provenance *provenance.Tracker

	// Metrics and Hub are optional (nil-safe) collaborators: when set, Tick
	// records its outcome on Metrics and broadcasts it on Hub, the same way
	// the teacher's engine takes an optional MetricsCollector/ObserverManager
	// at construction rather than threading them through every call.
	Metrics *metrics.Collector
	Hub     *observer.Hub
	// Branch tags events this Executor broadcasts on Hub with the timeline
	// branch it is driving.
	Branch string
}

// NewExecutor assembles an Executor from its component subsystems. mc and
// hub may be nil.
func NewExecutor(engine *rule.Engine, dc *derived.Cache, checker *constraint.Checker, prov *provenance.Tracker, mc *metrics.Collector, hub *observer.Hub) *Executor {
	return &Executor{Engine: engine, Derived: dc, Checker: checker, Provenance: prov, Metrics: mc, Hub: hub}
}

// SetBranch sets the branch name Tick broadcasts events under, and
// propagates it to the wrapped rule Engine so EventRuleFired carries the
// same branch.
func (e *Executor) SetBranch(branch string) {
	e.Branch = branch
	if e.Engine != nil {
		e.Engine.SetBranch(branch)
	}
}

func (e *Executor) recordTick(duration time.Duration, committed bool) {
	if e.Metrics != nil {
		e.Metrics.RecordTick(duration, committed)
	}
}

func (e *Executor) broadcast(event *observer.Event) {
	if e.Hub != nil {
		event.Branch = e.Branch
		e.Hub.Broadcast(e.Branch, event)
	}
}

// Result reports what a tick produced: the committed (or, on Aborted, the
// unchanged pre-tick) World plus every constraint violation observed.
type Result struct {
	Status     Status
	World      store.World
	Violations []constraint.Violation
	Fired      []rule.Fired
}

// Tick applies inputs to w0, runs rules to quiescence, checks constraints,
// and either commits the resulting World at the next tick number or rolls
// back to w0 on an Abort violation.
func (e *Executor) Tick(w0 store.World, inputs []effectvm.Effect, inputVars map[string]foundation.Value) (Result, error) {
	start := time.Now()
	if inputVars == nil {
		inputVars = map[string]foundation.Value{}
	}

	w1, inputWrites, err := effectvm.ApplyAll(w0, inputVars, inputs)
	if err != nil {
		e.recordTick(time.Since(start), false)
		e.broadcast(&observer.Event{Type: observer.EventTickAborted, TickID: w0.Tick, Detail: err.Error()})
		return Result{Status: Aborted, World: w0}, err
	}

	for _, wr := range inputWrites {
		e.Derived.Invalidate(wr.Entity, wr.Component)
	}

	w2, fired, err := e.Engine.RunToQuiescence(w1)
	if err != nil {
		e.recordTick(time.Since(start), false)
		e.broadcast(&observer.Event{Type: observer.EventTickAborted, TickID: w0.Tick, Detail: err.Error()})
		return Result{Status: Aborted, World: w0}, err
	}

	var ruleWrites []effectvm.Write
	for _, f := range fired {
		for _, wr := range f.Writes {
			e.Derived.Invalidate(wr.Entity, wr.Component)
		}
		ruleWrites = append(ruleWrites, f.Writes...)
	}

	violations, err := e.Checker.Check(w2)
	if err != nil {
		e.recordTick(time.Since(start), false)
		e.broadcast(&observer.Event{Type: observer.EventTickAborted, TickID: w0.Tick, Detail: err.Error()})
		return Result{Status: Aborted, World: w0}, err
	}

	if len(violations) > 0 {
		e.broadcast(&observer.Event{Type: observer.EventViolation, TickID: w0.Tick, Detail: violations})
	}

	if constraint.HasAbort(violations) {
		log.Warn().Int("violations", len(violations)).Uint64("tick", w0.Tick).Msg("tick aborted")
		e.recordTick(time.Since(start), false)
		e.broadcast(&observer.Event{Type: observer.EventTickAborted, TickID: w0.Tick, Detail: violations})
		return Result{Status: Aborted, World: w0, Violations: violations}, nil
	}

	w3 := w2.NextTick()

	nextTick := w3.Tick
	e.Provenance.RecordTick(toRecords(nextTick, "", nil, inputWrites))
	for _, f := range fired {
		e.Provenance.RecordTick(toRecords(nextTick, f.Rule, f.Bindings, f.Writes))
	}

	if len(violations) > 0 {
		log.Warn().Int("violations", len(violations)).Uint64("tick", nextTick).Msg("tick committed with warnings")
	}

	e.recordTick(time.Since(start), true)
	e.broadcast(&observer.Event{Type: observer.EventTickCommitted, TickID: nextTick})

	return Result{Status: Committed, World: w3, Violations: violations, Fired: fired}, nil
}

func toRecords(tickID uint64, ruleName string, bindings map[string]foundation.Value, writes []effectvm.Write) []provenance.Record {
	out := make([]provenance.Record, 0, len(writes))
	for _, w := range writes {
		out = append(out, provenance.Record{
			Tick:      tickID,
			Entity:    w.Entity,
			Component: w.Component,
			Field:     w.Field,
			Old:       w.Old,
			New:       w.New,
			Rule:      ruleName,
			Bindings:  bindings,
		})
	}
	return out
}
