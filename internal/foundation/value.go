package foundation

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindKeyword
	KindEntityRef
	KindVec
	KindSet
	KindMap
	KindFn
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindKeyword:
		return "keyword"
	case KindEntityRef:
		return "entity-ref"
	case KindVec:
		return "vec"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	case KindFn:
		return "fn"
	default:
		return "unknown"
	}
}

// Fn describes a callable's arity. Longtable treats function bodies as
// opaque; only the shape needed for schema validation is modeled.
type Fn struct {
	Name string
	Min  int
	Max  int // -1 for variadic (no upper bound)
}

// Value is Longtable's tagged-union data value: every component field,
// rule binding, and effect argument is a Value.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	entity EntityID
	vec    Vec
	set    Set
	m      Map
	fn     *Fn
}

func Nil() Value                     { return Value{kind: KindNil} }
func Bool(b bool) Value              { return Value{kind: KindBool, b: b} }
func Int(i int64) Value              { return Value{kind: KindInt, i: i} }
func Float(f float64) Value          { return Value{kind: KindFloat, f: f} }
func String(s string) Value          { return Value{kind: KindString, s: s} }
func Symbol(name string) Value       { return Value{kind: KindSymbol, s: name} }
func Keyword(name string) Value      { return Value{kind: KindKeyword, s: name} }
func EntityRef(id EntityID) Value    { return Value{kind: KindEntityRef, entity: id} }
func VecValue(v Vec) Value           { return Value{kind: KindVec, vec: v} }
func SetValue(s Set) Value           { return Value{kind: KindSet, set: s} }
func MapValue(m Map) Value           { return Value{kind: KindMap, m: m} }
func FnValue(fn *Fn) Value           { return Value{kind: KindFn, fn: fn} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) SymbolName() (string, bool) {
	if v.kind != KindSymbol {
		return "", false
	}
	return v.s, true
}

func (v Value) KeywordName() (string, bool) {
	if v.kind != KindKeyword {
		return "", false
	}
	return v.s, true
}

func (v Value) Entity() (EntityID, bool) {
	if v.kind != KindEntityRef {
		return EntityID{}, false
	}
	return v.entity, true
}

func (v Value) VecVal() (Vec, bool) {
	if v.kind != KindVec {
		return Vec{}, false
	}
	return v.vec, true
}

func (v Value) SetVal() (Set, bool) {
	if v.kind != KindSet {
		return Set{}, false
	}
	return v.set, true
}

func (v Value) MapVal() (Map, bool) {
	if v.kind != KindMap {
		return Map{}, false
	}
	return v.m, true
}

func (v Value) FnVal() (*Fn, bool) {
	if v.kind != KindFn {
		return nil, false
	}
	return v.fn, true
}

// Native unwraps a Value into a plain Go value suitable for passing into
// an expr-lang evaluation environment.
func (v Value) Native() any {
	switch v.kind {
	case KindNil:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindSymbol, KindKeyword:
		return v.s
	case KindEntityRef:
		return v.entity
	case KindVec:
		out := make([]any, v.vec.Len())
		for i, item := range v.vec.Items() {
			out[i] = item.Native()
		}
		return out
	case KindSet:
		out := make([]any, 0, v.set.Len())
		for _, item := range v.set.Items() {
			out = append(out, item.Native())
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		for _, k := range v.m.Keys() {
			val, _ := v.m.Get(k)
			out[hashKeyString(k)] = val.Native()
		}
		return out
	case KindFn:
		return v.fn.Name
	default:
		return nil
	}
}

// FromNative converts a plain Go value (typically the result of evaluating
// an expr-lang expression) into a Value. Only the shapes an expression
// evaluator can actually produce are handled; anything else becomes Nil.
func FromNative(v any) Value {
	switch val := v.(type) {
	case nil:
		return Nil()
	case Value:
		return val
	case bool:
		return Bool(val)
	case int:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint64:
		return Int(int64(val))
	case float32:
		return Float(float64(val))
	case float64:
		return Float(val)
	case string:
		return String(val)
	case EntityID:
		return EntityRef(val)
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromNative(item)
		}
		return VecValue(NewVec(items...))
	case map[string]any:
		m := NewMap()
		for k, item := range val {
			m = m.Set(Keyword(k), FromNative(item))
		}
		return MapValue(m)
	default:
		return Nil()
	}
}

func hashKeyString(k Value) string {
	switch k.kind {
	case KindString:
		return k.s
	case KindKeyword:
		return k.s
	case KindSymbol:
		return k.s
	case KindInt:
		return strconv.FormatInt(k.i, 10)
	default:
		return fmt.Sprintf("%v", k.Native())
	}
}

// Equal reports structural equality between two Values (cross-kind
// comparisons are always unequal).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindSymbol, KindKeyword:
		return v.s == other.s
	case KindEntityRef:
		return v.entity == other.entity
	case KindVec:
		return v.vec.Equal(other.vec)
	case KindSet:
		return v.set.Equal(other.set)
	case KindMap:
		return v.m.Equal(other.m)
	case KindFn:
		return v.fn == other.fn
	default:
		return false
	}
}

// Hash produces a content hash used for refraction keys and set/map
// membership.
func (v Value) Hash() uint64 {
	h := fnv.New64a()
	writeKindAndBytes(h, v)
	return h.Sum64()
}

func writeKindAndBytes(h interface{ Write([]byte) (int, error) }, v Value) {
	h.Write([]byte{byte(v.kind)})
	switch v.kind {
	case KindBool:
		if v.b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case KindInt:
		h.Write([]byte(strconv.FormatInt(v.i, 10)))
	case KindFloat:
		h.Write([]byte(strconv.FormatFloat(v.f, 'g', -1, 64)))
	case KindString, KindSymbol, KindKeyword:
		h.Write([]byte(v.s))
	case KindEntityRef:
		h.Write([]byte(strconv.FormatUint(v.entity.Index, 10)))
		h.Write([]byte(strconv.FormatUint(uint64(v.entity.Generation), 10)))
	case KindVec:
		for _, item := range v.vec.Items() {
			h.Write([]byte(strconv.FormatUint(item.Hash(), 16)))
		}
	case KindSet:
		hashes := make([]uint64, 0, v.set.Len())
		for _, item := range v.set.Items() {
			hashes = append(hashes, item.Hash())
		}
		sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
		for _, hh := range hashes {
			h.Write([]byte(strconv.FormatUint(hh, 16)))
		}
	case KindMap:
		pairs := make([][2]uint64, 0, v.m.Len())
		for _, k := range v.m.Keys() {
			val, _ := v.m.Get(k)
			pairs = append(pairs, [2]uint64{k.Hash(), val.Hash()})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})
		for _, p := range pairs {
			h.Write([]byte(strconv.FormatUint(p[0], 16)))
			h.Write([]byte(strconv.FormatUint(p[1], 16)))
		}
	case KindFn:
		if v.fn != nil {
			h.Write([]byte(v.fn.Name))
		}
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindSymbol:
		return v.s
	case KindKeyword:
		return ":" + v.s
	case KindEntityRef:
		return v.entity.String()
	case KindVec, KindSet, KindMap, KindFn:
		return fmt.Sprintf("<%s>", v.kind)
	default:
		return "<invalid>"
	}
}
