// Package serialize implements Longtable's wire format: a self-describing
// MessagePack encoding of Values and whole World snapshots, sufficient to
// losslessly round-trip everything the core mutates, per spec.md §6's
// snapshot serialization contract. The surface DSL's own document format
// is out of scope; this package exists for history persistence
// (internal/timeline/pgstore) and inter-process world transfer.
package serialize

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/longtable/longtable/internal/foundation"
	"github.com/longtable/longtable/internal/store"
)

// wireKind tags which Value variant a valueWire carries, since msgpack
// itself does not distinguish e.g. a keyword from a plain string.
type wireKind uint8

const (
	wireNil wireKind = iota
	wireBool
	wireInt
	wireFloat
	wireString
	wireSymbol
	wireKeyword
	wireEntity
	wireVec
	wireSet
	wireMap
)

type entityWire struct {
	Index      uint64 `msgpack:"i"`
	Generation uint32 `msgpack:"g"`
}

type mapEntryWire struct {
	Key   valueWire `msgpack:"k"`
	Value valueWire `msgpack:"v"`
}

// valueWire is the wire shape of one foundation.Value. Only the fields
// relevant to Kind are populated; Fn values are not serializable (the VM
// closures they reference are process-local) and encode as Nil.
type valueWire struct {
	Kind   wireKind       `msgpack:"k"`
	Bool   bool           `msgpack:"b,omitempty"`
	Int    int64          `msgpack:"i,omitempty"`
	Float  float64        `msgpack:"f,omitempty"`
	Str    string         `msgpack:"s,omitempty"`
	Entity entityWire     `msgpack:"e,omitempty"`
	Items  []valueWire    `msgpack:"items,omitempty"`
	Pairs  []mapEntryWire `msgpack:"pairs,omitempty"`
}

func toWire(v foundation.Value) valueWire {
	switch v.Kind() {
	case foundation.KindNil:
		return valueWire{Kind: wireNil}
	case foundation.KindBool:
		b, _ := v.Bool()
		return valueWire{Kind: wireBool, Bool: b}
	case foundation.KindInt:
		i, _ := v.Int()
		return valueWire{Kind: wireInt, Int: i}
	case foundation.KindFloat:
		f, _ := v.Float()
		return valueWire{Kind: wireFloat, Float: f}
	case foundation.KindString:
		s, _ := v.Str()
		return valueWire{Kind: wireString, Str: s}
	case foundation.KindSymbol:
		s, _ := v.SymbolName()
		return valueWire{Kind: wireSymbol, Str: s}
	case foundation.KindKeyword:
		s, _ := v.KeywordName()
		return valueWire{Kind: wireKeyword, Str: s}
	case foundation.KindEntityRef:
		e, _ := v.Entity()
		return valueWire{Kind: wireEntity, Entity: entityWire{Index: e.Index, Generation: e.Generation}}
	case foundation.KindVec:
		vec, _ := v.VecVal()
		items := vec.Items()
		out := make([]valueWire, len(items))
		for i, it := range items {
			out[i] = toWire(it)
		}
		return valueWire{Kind: wireVec, Items: out}
	case foundation.KindSet:
		set, _ := v.SetVal()
		items := set.Items()
		out := make([]valueWire, len(items))
		for i, it := range items {
			out[i] = toWire(it)
		}
		return valueWire{Kind: wireSet, Items: out}
	case foundation.KindMap:
		m, _ := v.MapVal()
		keys := m.Keys()
		pairs := make([]mapEntryWire, len(keys))
		for i, k := range keys {
			val, _ := m.Get(k)
			pairs[i] = mapEntryWire{Key: toWire(k), Value: toWire(val)}
		}
		return valueWire{Kind: wireMap, Pairs: pairs}
	default:
		return valueWire{Kind: wireNil}
	}
}

func fromWire(w valueWire) foundation.Value {
	switch w.Kind {
	case wireNil:
		return foundation.Nil()
	case wireBool:
		return foundation.Bool(w.Bool)
	case wireInt:
		return foundation.Int(w.Int)
	case wireFloat:
		return foundation.Float(w.Float)
	case wireString:
		return foundation.String(w.Str)
	case wireSymbol:
		return foundation.Symbol(w.Str)
	case wireKeyword:
		return foundation.Keyword(w.Str)
	case wireEntity:
		return foundation.EntityRef(foundation.NewEntityID(w.Entity.Index, w.Entity.Generation))
	case wireVec:
		items := make([]foundation.Value, len(w.Items))
		for i, it := range w.Items {
			items[i] = fromWire(it)
		}
		return foundation.VecValue(foundation.NewVec(items...))
	case wireSet:
		items := make([]foundation.Value, len(w.Items))
		for i, it := range w.Items {
			items[i] = fromWire(it)
		}
		return foundation.SetValue(foundation.NewSet(items...))
	case wireMap:
		m := foundation.NewMap()
		for _, p := range w.Pairs {
			m = m.Set(fromWire(p.Key), fromWire(p.Value))
		}
		return foundation.MapValue(m)
	default:
		return foundation.Nil()
	}
}

// EncodeValue encodes a single Value to MessagePack.
func EncodeValue(v foundation.Value) ([]byte, error) {
	return msgpack.Marshal(toWire(v))
}

// DecodeValue decodes a single Value previously produced by EncodeValue.
func DecodeValue(data []byte) (foundation.Value, error) {
	var w valueWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return foundation.Value{}, err
	}
	return fromWire(w), nil
}

type instanceWire struct {
	Entity entityWire `msgpack:"e"`
	Fields valueWire  `msgpack:"f"`
}

type componentWire struct {
	Name      string         `msgpack:"n"`
	Instances []instanceWire `msgpack:"i"`
}

type linkWire struct {
	From entityWire `msgpack:"from"`
	To   entityWire `msgpack:"to"`
}

type relationshipWire struct {
	Name  string     `msgpack:"n"`
	Links []linkWire `msgpack:"l"`
}

// worldWire is the wire shape of a whole World. Component and relationship
// schemas are not carried: application code re-registers them at startup,
// and SetUnchecked/RegisterSchema calls during decode restore component
// data without re-validating against schemas the wire format never saw.
type worldWire struct {
	Tick          uint64             `msgpack:"tick"`
	Generations   []uint32           `msgpack:"gen"`
	Alive         []bool             `msgpack:"alive"`
	Components    []componentWire    `msgpack:"comp"`
	Relationships []relationshipWire `msgpack:"rel"`
}

func toWorldWire(w store.World) worldWire {
	gens, alive := w.Entities.RawState()
	out := worldWire{Tick: w.Tick, Generations: gens, Alive: alive}

	for _, name := range w.Components.Names() {
		var instances []instanceWire
		for _, e := range w.Components.EntitiesWith(name) {
			fields, _ := w.Component(e, name)
			instances = append(instances, instanceWire{
				Entity: entityWire{Index: e.Index, Generation: e.Generation},
				Fields: toWire(foundation.MapValue(fields)),
			})
		}
		out.Components = append(out.Components, componentWire{Name: name, Instances: instances})
	}

	for _, name := range w.Relationships.Names() {
		var links []linkWire
		for _, e := range w.Entities.Live() {
			for _, to := range w.Relationships.Related(e, name) {
				links = append(links, linkWire{
					From: entityWire{Index: e.Index, Generation: e.Generation},
					To:   entityWire{Index: to.Index, Generation: to.Generation},
				})
			}
		}
		out.Relationships = append(out.Relationships, relationshipWire{Name: name, Links: links})
	}

	return out
}

func fromWorldWire(w worldWire) store.World {
	world := store.NewWorld()
	world.Tick = w.Tick
	world.Entities = store.EntityStoreFromRaw(w.Generations, w.Alive)

	for _, comp := range w.Components {
		for _, inst := range comp.Instances {
			entity := foundation.NewEntityID(inst.Entity.Index, inst.Entity.Generation)
			fields, _ := fromWire(inst.Fields).MapVal()
			world.Components = world.Components.SetUnchecked(entity, comp.Name, fields)
		}
	}

	for _, rel := range w.Relationships {
		schema := store.RelationshipSchema{Name: rel.Name, Cardinality: store.ManyToMany, Cascade: store.CascadeNone}
		world.Relationships = world.Relationships.RegisterSchema(schema)
		for _, link := range rel.Links {
			from := foundation.NewEntityID(link.From.Index, link.From.Generation)
			to := foundation.NewEntityID(link.To.Index, link.To.Generation)
			world.Relationships, _ = world.Relationships.Link(from, to, rel.Name)
		}
	}

	return world
}

// EncodeWorld encodes w's full entity/component/relationship state (but
// not its schemas; see worldWire) to MessagePack.
func EncodeWorld(w store.World) ([]byte, error) {
	return msgpack.Marshal(toWorldWire(w))
}

// DecodeWorld decodes a World previously produced by EncodeWorld. The
// caller must re-register component schemas (and, if cardinality/cascade
// behavior matters going forward, relationship schemas with their
// original Cardinality/Cascade) before mutating the result, since those
// do not round-trip through the wire format.
func DecodeWorld(data []byte) (store.World, error) {
	var w worldWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return store.World{}, err
	}
	return fromWorldWire(w), nil
}
