package timeline

import (
	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

// MergeStrategy selects how merge reconciles component data that changed
// on both sides relative to base.
type MergeStrategy int

const (
	// PreferOurs keeps ours's value on every conflict.
	PreferOurs MergeStrategy = iota
	// PreferTheirs keeps theirs's value on every conflict.
	PreferTheirs
	// Union takes non-conflicting writes from both sides; any field
	// changed differently on both sides fails with MergeConflict.
	Union
	// Custom resolves each conflicting field with a caller-supplied
	// Resolver.
	Custom
)

// Resolver picks a winning value for one conflicting field when merging
// with the Custom strategy.
type Resolver func(entity foundation.EntityID, component, field string, base, ours, theirs foundation.Value) foundation.Value

// Merge reconciles ours and theirs, both descended from base, into a new
// World. It is a deliberate scope reduction from a full entity-allocator
// merge: rather than reconciling two independently-diverged EntityStores
// (which may have reused the same free index for different new entities
// on each side), Merge takes ours's entity allocator as the result's —
// ours is the target branch a merge commits onto — and only reconciles
// component DATA for entities alive in both branches plus those spawned
// only on ours. An entity spawned only on theirs is not carried over;
// branch/merge workflows are expected to replay such spawns as ordinary
// effects after merging. Relationship links are not reconciled by Merge;
// callers wanting merged links re-`Link` them post-merge.
func Merge(strategy MergeStrategy, base, ours, theirs store.World, resolve Resolver) (store.World, error) {
	result := ours

	for _, comp := range unionComponentNames(ours, theirs) {
		for _, e := range ours.Entities.Live() {
			baseF, baseOk := base.Component(e, comp)
			ourF, ourOk := ours.Component(e, comp)
			theirF, theirOk := theirs.Component(e, comp)

			if !theirs.Entities.IsAlive(e) {
				// Only present in ours (or never existed in theirs); nothing
				// to reconcile.
				continue
			}
			if !ourOk && !theirOk {
				continue
			}

			merged, err := mergeComponent(strategy, e, comp, baseF, baseOk, ourF, ourOk, theirF, theirOk, resolve)
			if err != nil {
				return base, err
			}
			if merged == nil {
				continue
			}
			nr, err := result.SetComponent(e, comp, *merged)
			if err != nil {
				return base, err
			}
			result = nr
		}
	}

	return result, nil
}

func mergeComponent(strategy MergeStrategy, e foundation.EntityID, comp string, baseF foundation.Map, baseOk bool, ourF foundation.Map, ourOk bool, theirF foundation.Map, theirOk bool, resolve Resolver) (*foundation.Map, error) {
	if !baseOk {
		switch {
		case ourOk && theirOk:
			return mergeFields(strategy, e, comp, foundation.NewMap(), ourF, theirF, resolve)
		case ourOk:
			return &ourF, nil
		case theirOk:
			return &theirF, nil
		}
		return nil, nil
	}
	ourChanged := ourOk && !sameMap(baseF, ourF)
	theirChanged := theirOk && !sameMap(baseF, theirF)
	switch {
	case !ourChanged && !theirChanged:
		return nil, nil
	case ourChanged && !theirChanged:
		return &ourF, nil
	case !ourChanged && theirChanged:
		return &theirF, nil
	default:
		return mergeFields(strategy, e, comp, baseF, ourF, theirF, resolve)
	}
}

func mergeFields(strategy MergeStrategy, e foundation.EntityID, comp string, baseF, ourF, theirF foundation.Map, resolve Resolver) (*foundation.Map, error) {
	switch strategy {
	case PreferOurs:
		return &ourF, nil
	case PreferTheirs:
		return &theirF, nil
	}

	out := ourF
	for _, field := range unionFields(ourF, theirF) {
		key := foundation.Keyword(field)
		baseV, _ := baseF.Get(key)
		ourV, _ := ourF.Get(key)
		theirV, _ := theirF.Get(key)
		if ourV.Equal(theirV) {
			continue
		}
		ourChanged := !ourV.Equal(baseV)
		theirChanged := !theirV.Equal(baseV)
		switch {
		case ourChanged && !theirChanged:
			out = out.Set(key, ourV)
		case !ourChanged && theirChanged:
			out = out.Set(key, theirV)
		case strategy == Custom && resolve != nil:
			out = out.Set(key, resolve(e, comp, field, baseV, ourV, theirV))
		default:
			return nil, foundation.NewErrorf(foundation.ErrMergeConflict,
				"entity %s component %q field %q conflicts between branches", e, comp, field)
		}
	}
	return &out, nil
}

func sameMap(a, b foundation.Map) bool {
	return foundation.MapValue(a).Equal(foundation.MapValue(b))
}
