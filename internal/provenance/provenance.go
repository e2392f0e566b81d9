// Package provenance records, for every write a tick produces, which rule
// firing (and bindings) produced it, and answers "why" queries that
// reconstruct the causal chain of writes to a given (entity, component,
// field) key back through time.
package provenance

import (
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/pattern"
)

// Verbosity controls how much per-tick write detail is retained.
type Verbosity int

const (
	// Minimal retains only the most recent write per (entity, component,
	// field) key, enough to answer a depth-1 "why" query; the bindings
	// that produced the write are dropped.
	Minimal Verbosity = iota
	// Standard additionally retains the bindings that produced each
	// retained write.
	Standard
	// Full retains the complete per-tick write log, enough to answer
	// multi-hop "why" queries across ticks.
	Full
)

// Record is one write produced during a tick, attributed to the rule
// firing (or external input batch, when Rule is empty) that caused it.
type Record struct {
	Tick      uint64
	Entity    foundation.EntityID
	Component string
	Field     string
	Old       foundation.Value
	New       foundation.Value
	Rule      string
	Bindings  pattern.Bindings
}

func (r Record) key() writeKey {
	return writeKey{entity: r.Entity, component: r.Component, field: r.Field}
}

type writeKey struct {
	entity    foundation.EntityID
	component string
	field     string
}

// CausalLink is one hop of a CausalChain: the rule firing and bindings
// that produced a write.
type CausalLink struct {
	Rule     string
	Tick     uint64
	Bindings pattern.Bindings
}

// CausalChain is the ordered (most recent first) sequence of writes that
// led to a given value, as reconstructed by WhyChain.
type CausalChain []CausalLink

// Tracker accumulates write Records across ticks according to a fixed
// Verbosity and answers Why/WhyChain queries against them.
type Tracker struct {
	verbosity Verbosity
	latest    map[writeKey]Record
	log       []Record // Full verbosity only; append-only, oldest first
}

// NewTracker returns an empty Tracker at the given verbosity.
func NewTracker(v Verbosity) *Tracker {
	return &Tracker{verbosity: v, latest: map[writeKey]Record{}}
}

// RecordTick appends every write of one tick to the tracker.
func (t *Tracker) RecordTick(records []Record) {
	for _, r := range records {
		if t.verbosity == Minimal {
			r.Bindings = nil
		}
		t.latest[r.key()] = r
		if t.verbosity == Full {
			t.log = append(t.log, r)
		}
	}
}

// Why returns the most recent write to (entity, component, field), if any
// is retained.
func (t *Tracker) Why(entity foundation.EntityID, component, field string) (Record, bool) {
	r, ok := t.latest[writeKey{entity: entity, component: component, field: field}]
	return r, ok
}

// WhyChain reconstructs up to depth causal hops for (entity, component,
// field): the most recent write, then the write immediately preceding it
// to the same key at an earlier tick, and so on. It requires Full
// verbosity; at lower verbosity it returns the single most recent link
// available.
func (t *Tracker) WhyChain(entity foundation.EntityID, component, field string, depth int) CausalChain {
	key := writeKey{entity: entity, component: component, field: field}
	if t.verbosity != Full {
		r, ok := t.latest[key]
		if !ok {
			return nil
		}
		return CausalChain{{Rule: r.Rule, Tick: r.Tick, Bindings: r.Bindings}}
	}

	var matches []Record
	for _, r := range t.log {
		if r.key() == key {
			matches = append(matches, r)
		}
	}
	// log is append order (oldest first); walk backward for most-recent-first.
	var chain CausalChain
	for i := len(matches) - 1; i >= 0 && len(chain) < depth; i-- {
		r := matches[i]
		chain = append(chain, CausalLink{Rule: r.Rule, Tick: r.Tick, Bindings: r.Bindings})
	}
	return chain
}
