// Package timeline implements the history ring buffer, diffing, and
// branch/merge machinery that sits on top of immutable World snapshots.
package timeline

import (
	"sort"

	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

// Snapshot is one committed tick: the World as of that tick plus a short
// human-readable summary (e.g. the rules that fired).
type Snapshot struct {
	TickID  uint64
	World   store.World
	Summary string
}

// HistoryBuffer is a fixed-capacity ring of the most recently committed
// snapshots. Pushing past capacity silently overwrites the oldest entry;
// older ticks become TickNotRetained.
type HistoryBuffer struct {
	capacity  int
	snapshots []Snapshot // ordered oldest..newest, length <= capacity
}

// NewHistoryBuffer returns a buffer retaining at most capacity snapshots.
// A non-positive capacity falls back to the spec's default of 100.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &HistoryBuffer{capacity: capacity}
}

// Push appends a new snapshot, evicting the oldest if the buffer is full.
func (h *HistoryBuffer) Push(s Snapshot) {
	h.snapshots = append(h.snapshots, s)
	if len(h.snapshots) > h.capacity {
		h.snapshots = h.snapshots[len(h.snapshots)-h.capacity:]
	}
}

// Lookup returns the snapshot for tickID if still retained.
func (h *HistoryBuffer) Lookup(tickID uint64) (Snapshot, bool) {
	for _, s := range h.snapshots {
		if s.TickID == tickID {
			return s, true
		}
	}
	return Snapshot{}, false
}

// Latest returns the most recently pushed snapshot, if any.
func (h *HistoryBuffer) Latest() (Snapshot, bool) {
	if len(h.snapshots) == 0 {
		return Snapshot{}, false
	}
	return h.snapshots[len(h.snapshots)-1], true
}

// Branch is a named pointer into the snapshot DAG: the tick it forked
// from and its own independent append history beyond that point.
type Branch struct {
	Name    string
	Parent  string // empty for the root branch
	ForkTick uint64
	History *HistoryBuffer
}

// Timeline owns a registry of branches sharing snapshots by reference and
// a currently checked-out branch.
type Timeline struct {
	branches map[string]*Branch
	active   string
	capacity int
}

// NewTimeline creates a Timeline with a single root branch holding an
// empty history of the given ring capacity.
func NewTimeline(rootBranch string, capacity int) *Timeline {
	t := &Timeline{branches: map[string]*Branch{}, active: rootBranch, capacity: capacity}
	t.branches[rootBranch] = &Branch{Name: rootBranch, History: NewHistoryBuffer(capacity)}
	return t
}

// Active returns the name of the checked-out branch.
func (t *Timeline) Active() string { return t.active }

// Checkout switches the active branch pointer. Branches never share
// mutable state; only the underlying immutable snapshots are shared.
func (t *Timeline) Checkout(name string) error {
	if _, ok := t.branches[name]; !ok {
		return foundation.NewErrorf(foundation.ErrBranchUnknown, "branch %q does not exist", name)
	}
	t.active = name
	return nil
}

// BranchFrom creates a new branch named name, forking from fromTick on the
// active branch. The new branch's history starts empty; lookups for ticks
// at or before the fork point are served by walking up to the parent.
func (t *Timeline) BranchFrom(name string, fromTick uint64) error {
	if _, ok := t.branches[name]; ok {
		return foundation.NewErrorf(foundation.ErrBranchUnknown, "branch %q already exists", name)
	}
	parent, ok := t.branches[t.active]
	if !ok {
		return foundation.NewErrorf(foundation.ErrBranchUnknown, "active branch %q does not exist", t.active)
	}
	if _, ok := parent.History.Lookup(fromTick); !ok {
		return foundation.NewErrorf(foundation.ErrTickNotRetained, "tick %d is not retained on branch %q", fromTick, t.active)
	}
	t.branches[name] = &Branch{Name: name, Parent: t.active, ForkTick: fromTick, History: NewHistoryBuffer(t.capacity)}
	return nil
}

// Push records a new snapshot on the active branch.
func (t *Timeline) Push(s Snapshot) {
	t.branches[t.active].History.Push(s)
}

// Lookup resolves tickID on the active branch, falling back to ancestor
// branches for ticks committed before the active branch's fork point.
func (t *Timeline) Lookup(tickID uint64) (Snapshot, bool) {
	name := t.active
	for name != "" {
		b, ok := t.branches[name]
		if !ok {
			return Snapshot{}, false
		}
		if s, ok := b.History.Lookup(tickID); ok {
			return s, true
		}
		if tickID > b.ForkTick && b.Parent != "" {
			return Snapshot{}, false
		}
		name = b.Parent
	}
	return Snapshot{}, false
}

// Granularity selects how finely diff reports changed component data.
type Granularity int

const (
	// ComponentGranularity reports one ComponentChange per differing
	// component instance, without per-field detail.
	ComponentGranularity Granularity = iota
	// FieldGranularity additionally reports one ValueChange per differing
	// field within a changed component.
	FieldGranularity
)

// ValueChange is one field that differs between two World snapshots.
type ValueChange struct {
	Field string
	Old   foundation.Value
	New   foundation.Value
}

// ComponentChange is one (entity, component) whose data differs between
// two World snapshots, optionally broken down per field.
type ComponentChange struct {
	Entity    foundation.EntityID
	Component string
	Fields    []ValueChange // populated only at FieldGranularity
}

// WorldDiff is the result of comparing two World snapshots.
type WorldDiff struct {
	AddedEntities   []foundation.EntityID
	RemovedEntities []foundation.EntityID
	ChangedComponents []ComponentChange
}

// Diff compares wa and wb at the requested granularity.
func Diff(wa, wb store.World, gran Granularity) WorldDiff {
	aLive := map[foundation.EntityID]bool{}
	for _, e := range wa.Entities.Live() {
		aLive[e] = true
	}
	bLive := map[foundation.EntityID]bool{}
	for _, e := range wb.Entities.Live() {
		bLive[e] = true
	}

	var diff WorldDiff
	for e := range bLive {
		if !aLive[e] {
			diff.AddedEntities = append(diff.AddedEntities, e)
		}
	}
	for e := range aLive {
		if !bLive[e] {
			diff.RemovedEntities = append(diff.RemovedEntities, e)
		}
	}
	sortEntityIDs(diff.AddedEntities)
	sortEntityIDs(diff.RemovedEntities)

	entities := unionEntities(aLive, bLive)
	components := unionComponentNames(wa, wb)
	for _, e := range entities {
		if !aLive[e] || !bLive[e] {
			continue
		}
		for _, comp := range components {
			af, aok := wa.Component(e, comp)
			bf, bok := wb.Component(e, comp)
			if !aok && !bok {
				continue
			}
			if aok != bok {
				diff.ChangedComponents = append(diff.ChangedComponents, componentChangeFor(e, comp, af, bf, gran))
				continue
			}
			if changes := fieldChanges(af, bf); len(changes) > 0 {
				diff.ChangedComponents = append(diff.ChangedComponents, componentChangeFromFields(e, comp, changes, gran))
			}
		}
	}
	return diff
}

func componentChangeFor(e foundation.EntityID, comp string, af, bf foundation.Map, gran Granularity) ComponentChange {
	cc := ComponentChange{Entity: e, Component: comp}
	if gran == FieldGranularity {
		cc.Fields = fieldChanges(af, bf)
	}
	return cc
}

func componentChangeFromFields(e foundation.EntityID, comp string, changes []ValueChange, gran Granularity) ComponentChange {
	cc := ComponentChange{Entity: e, Component: comp}
	if gran == FieldGranularity {
		cc.Fields = changes
	}
	return cc
}

func fieldChanges(af, bf foundation.Map) []ValueChange {
	var out []ValueChange
	seen := map[string]bool{}
	for _, k := range unionFields(af, bf) {
		if seen[k] {
			continue
		}
		seen[k] = true
		av, aok := af.Get(foundation.Keyword(k))
		bv, bok := bf.Get(foundation.Keyword(k))
		if !aok {
			av = foundation.Nil()
		}
		if !bok {
			bv = foundation.Nil()
		}
		if !av.Equal(bv) {
			out = append(out, ValueChange{Field: k, Old: av, New: bv})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func unionFields(a, b foundation.Map) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range a.Keys() {
		name, _ := k.KeywordName()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, k := range b.Keys() {
		name, _ := k.KeywordName()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func unionComponentNames(wa, wb store.World) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range wa.Components.Names() {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range wb.Components.Names() {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func unionEntities(a, b map[foundation.EntityID]bool) []foundation.EntityID {
	seen := map[foundation.EntityID]bool{}
	var out []foundation.EntityID
	for e := range a {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for e := range b {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	sortEntityIDs(out)
	return out
}

func sortEntityIDs(ids []foundation.EntityID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Index != ids[j].Index {
			return ids[i].Index < ids[j].Index
		}
		return ids[i].Generation < ids[j].Generation
	})
}
