package effectvm

import "github.com/longtable/longtable/internal/foundation"

// EffectKind enumerates the closed set of mutations a rule or external
// input may apply to a World in a single tick.
type EffectKind int

const (
	EffectSet EffectKind = iota
	EffectSetField
	EffectRemove
	EffectSpawn
	EffectDestroy
	EffectLink
	EffectUnlink
	EffectTag
)

func (k EffectKind) String() string {
	switch k {
	case EffectSet:
		return "set"
	case EffectSetField:
		return "set-field"
	case EffectRemove:
		return "remove"
	case EffectSpawn:
		return "spawn"
	case EffectDestroy:
		return "destroy"
	case EffectLink:
		return "link"
	case EffectUnlink:
		return "unlink"
	case EffectTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Effect is one ABI-level instruction produced by a rule firing or an
// external input batch. Only the fields relevant to Kind are populated;
// the rest are zero values.
type Effect struct {
	Kind EffectKind

	// Entity names the pattern-bound variable (or, for Spawn, a fresh
	// binding name usable by later effects in the same firing) the
	// effect targets.
	Entity string

	Component    string
	Field        string
	Value        foundation.Value
	Relationship string
	Other        string // the "to" side of a Link/Unlink (another bound variable)
	Tag          string
}

// Set builds a Set effect.
func Set(entityVar, component string, fields foundation.Value) Effect {
	return Effect{Kind: EffectSet, Entity: entityVar, Component: component, Value: fields}
}

// SetField builds a SetField effect.
func SetField(entityVar, component, field string, val foundation.Value) Effect {
	return Effect{Kind: EffectSetField, Entity: entityVar, Component: component, Field: field, Value: val}
}

// Remove builds a Remove effect.
func Remove(entityVar, component string) Effect {
	return Effect{Kind: EffectRemove, Entity: entityVar, Component: component}
}

// Spawn builds a Spawn effect; resultVar names the binding subsequent
// effects in the same rule firing may reference. components, if not nil,
// is a Map of component-name keyword -> field Map, applied to the new
// entity immediately after it is spawned.
func Spawn(resultVar string, components foundation.Value) Effect {
	return Effect{Kind: EffectSpawn, Entity: resultVar, Value: components}
}

// Destroy builds a Destroy effect.
func Destroy(entityVar string) Effect {
	return Effect{Kind: EffectDestroy, Entity: entityVar}
}

// Link builds a Link effect.
func Link(fromVar, toVar, relationship string) Effect {
	return Effect{Kind: EffectLink, Entity: fromVar, Other: toVar, Relationship: relationship}
}

// Unlink builds an Unlink effect.
func Unlink(fromVar, toVar, relationship string) Effect {
	return Effect{Kind: EffectUnlink, Entity: fromVar, Other: toVar, Relationship: relationship}
}

// Tag builds a Tag effect (a zero-field marker component).
func Tag(entityVar, tag string) Effect {
	return Effect{Kind: EffectTag, Entity: entityVar, Tag: tag}
}
