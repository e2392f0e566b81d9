// Package store holds the World: the immutable, structurally-shared
// snapshot of entities, components, and relationships that a tick
// executes against.
package store

import (
	"github.com/longtable/longtable/internal/foundation"
)

// EntityStore is a generational entity allocator. Every mutating method
// returns a new EntityStore; the receiver is left untouched, so a World
// snapshot holding an EntityStore remains valid after a later tick
// allocates from a copy of it.
type EntityStore struct {
	generations []uint32
	alive       []bool
	freeList    []uint64
}

// NewEntityStore returns an empty allocator.
func NewEntityStore() EntityStore {
	return EntityStore{}
}

func (es EntityStore) clone() EntityStore {
	out := EntityStore{
		generations: make([]uint32, len(es.generations)),
		alive:       make([]bool, len(es.alive)),
		freeList:    make([]uint64, len(es.freeList)),
	}
	copy(out.generations, es.generations)
	copy(out.alive, es.alive)
	copy(out.freeList, es.freeList)
	return out
}

// Spawn allocates a fresh EntityID, reusing a destroyed index (with its
// generation bumped) when one is available.
func (es EntityStore) Spawn() (foundation.EntityID, EntityStore) {
	out := es.clone()
	var idx uint64
	if n := len(out.freeList); n > 0 {
		idx = out.freeList[n-1]
		out.freeList = out.freeList[:n-1]
		out.alive[idx] = true
	} else {
		idx = uint64(len(out.generations))
		out.generations = append(out.generations, 0)
		out.alive = append(out.alive, true)
	}
	id := foundation.NewEntityID(idx, out.generations[idx])
	return id, out
}

// Destroy marks id's index as free and bumps its generation, so any
// EntityID captured before this call becomes stale. Destroying an already
// stale or unknown id returns ErrStaleEntity.
func (es EntityStore) Destroy(id foundation.EntityID) (EntityStore, error) {
	if id.IsNull() {
		return es, foundation.NewError(foundation.ErrNullEntity, "cannot destroy the null entity")
	}
	if id.Index >= uint64(len(es.alive)) || !es.alive[id.Index] || es.generations[id.Index] != id.Generation {
		return es, foundation.NewErrorf(foundation.ErrStaleEntity, "entity %s is not live", id)
	}
	out := es.clone()
	out.alive[id.Index] = false
	out.generations[id.Index]++
	out.freeList = append(out.freeList, id.Index)
	return out, nil
}

// IsAlive reports whether id currently refers to a live entity at its
// recorded generation.
func (es EntityStore) IsAlive(id foundation.EntityID) bool {
	if id.IsNull() || id.Index >= uint64(len(es.alive)) {
		return false
	}
	return es.alive[id.Index] && es.generations[id.Index] == id.Generation
}

// CheckLive returns ErrStaleEntity if id is not currently alive.
func (es EntityStore) CheckLive(id foundation.EntityID) error {
	if !es.IsAlive(id) {
		return foundation.NewErrorf(foundation.ErrStaleEntity, "entity %s is stale or unknown", id)
	}
	return nil
}

// Live returns every currently live EntityID, in index order.
func (es EntityStore) Live() []foundation.EntityID {
	out := make([]foundation.EntityID, 0, len(es.alive))
	for idx, alive := range es.alive {
		if alive {
			out = append(out, foundation.NewEntityID(uint64(idx), es.generations[idx]))
		}
	}
	return out
}

// Count returns the number of currently live entities.
func (es EntityStore) Count() int {
	n := 0
	for _, alive := range es.alive {
		if alive {
			n++
		}
	}
	return n
}

// RawState exposes the allocator's raw generation/liveness arrays, indexed
// by entity index regardless of current liveness. Used by snapshot
// serialization, which needs to round-trip generation state exactly so a
// deserialized world still rejects stale EntityIDs correctly.
func (es EntityStore) RawState() (generations []uint32, alive []bool) {
	generations = make([]uint32, len(es.generations))
	copy(generations, es.generations)
	alive = make([]bool, len(es.alive))
	copy(alive, es.alive)
	return generations, alive
}

// EntityStoreFromRaw reconstructs an EntityStore from raw state captured by
// RawState, rebuilding the free list from the dead slots.
func EntityStoreFromRaw(generations []uint32, alive []bool) EntityStore {
	es := EntityStore{
		generations: append([]uint32{}, generations...),
		alive:       append([]bool{}, alive...),
	}
	for i, a := range es.alive {
		if !a {
			es.freeList = append(es.freeList, uint64(i))
		}
	}
	return es
}
