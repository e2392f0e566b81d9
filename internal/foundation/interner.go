package foundation

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// SymbolID and KeywordID are interned-string handles. They compare equal
// iff the underlying strings are equal, so rule/pattern matching can
// compare integers instead of strings on every tick.
type SymbolID uint32
type KeywordID uint32

// Interner is the single process-wide piece of shared mutable state: it
// maps symbol/keyword text to a stable numeric id the first time it is
// seen, and returns the same id on every subsequent call. It is safe for
// concurrent use by callers matching patterns across goroutines.
type Interner struct {
	symbols   *xsync.MapOf[string, uint32]
	keywords  *xsync.MapOf[string, uint32]
	symNames  *xsync.MapOf[uint32, string]
	kwNames   *xsync.MapOf[uint32, string]
	nextSym   atomic.Uint32
	nextKw    atomic.Uint32
}

// NewInterner constructs an empty Interner.
func NewInterner() *Interner {
	return &Interner{
		symbols:  xsync.NewMapOf[string, uint32](),
		keywords: xsync.NewMapOf[string, uint32](),
		symNames: xsync.NewMapOf[uint32, string](),
		kwNames:  xsync.NewMapOf[uint32, string](),
	}
}

// InternSymbol returns the stable SymbolID for name, allocating one if
// this is the first time name has been interned.
func (it *Interner) InternSymbol(name string) SymbolID {
	if id, ok := it.symbols.Load(name); ok {
		return SymbolID(id)
	}
	id := it.nextSym.Add(1) - 1
	actual, loaded := it.symbols.LoadOrStore(name, id)
	if !loaded {
		it.symNames.Store(id, name)
		return SymbolID(id)
	}
	return SymbolID(actual)
}

// InternKeyword returns the stable KeywordID for name.
func (it *Interner) InternKeyword(name string) KeywordID {
	if id, ok := it.keywords.Load(name); ok {
		return KeywordID(id)
	}
	id := it.nextKw.Add(1) - 1
	actual, loaded := it.keywords.LoadOrStore(name, id)
	if !loaded {
		it.kwNames.Store(id, name)
		return KeywordID(id)
	}
	return KeywordID(actual)
}

// SymbolName resolves a previously interned SymbolID back to its text.
func (it *Interner) SymbolName(id SymbolID) (string, bool) {
	return it.symNames.Load(uint32(id))
}

// KeywordName resolves a previously interned KeywordID back to its text.
func (it *Interner) KeywordName(id KeywordID) (string, bool) {
	return it.kwNames.Load(uint32(id))
}
