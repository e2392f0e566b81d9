package foundation

import (
	"fmt"
	"math"
)

// EntityID identifies an entity by a storage index plus a generation
// counter. The generation increments whenever an index is reused after
// destruction, so a stale handle captured before destruction can never
// alias a newly spawned entity at the same index.
type EntityID struct {
	Index      uint64
	Generation uint32
}

// NewEntityID builds an EntityID from its parts.
func NewEntityID(index uint64, generation uint32) EntityID {
	return EntityID{Index: index, Generation: generation}
}

// NullEntity returns the sentinel value representing "no entity". Its
// index is math.MaxUint64, which is never a valid allocated index.
func NullEntity() EntityID {
	return EntityID{Index: math.MaxUint64, Generation: 0}
}

// IsNull reports whether e is the null sentinel.
func (e EntityID) IsNull() bool {
	return e.Index == math.MaxUint64
}

// String renders a display form: "Entity(42)" or "Entity(null)".
func (e EntityID) String() string {
	if e.IsNull() {
		return "Entity(null)"
	}
	return fmt.Sprintf("Entity(%d)", e.Index)
}

// GoString renders a debug form: "EntityID(42v3)" or "EntityID(null)".
func (e EntityID) GoString() string {
	if e.IsNull() {
		return "EntityID(null)"
	}
	return fmt.Sprintf("EntityID(%dv%d)", e.Index, e.Generation)
}
