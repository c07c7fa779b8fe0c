// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// SymbolFlags records what kind of entry a Symbol refers to.
type SymbolFlags uint8

const (
	SymPredefined SymbolFlags = 1 << iota // one of the fixed, never-freed keyword/punctuation symbols
	SymInterned                           // a caller-supplied identifier string interned at runtime
	SymLifetime                           // an interned symbol spelled as a lifetime ('a, 'static)
)

// Symbol is a lightweight handle into an Interner's table: an index plus a
// flags byte distinguishing predefined symbols (never reference-counted)
// from runtime-interned ones (reference-counted, freed when the count
// drops to zero).
type Symbol struct {
	ID    uint32
	Flags SymbolFlags
}

// IsEmpty reports whether sym is the interner's zero-length sentinel.
func (sym Symbol) IsEmpty() bool { return sym == SymEmpty }

// Predefined symbols. Every Interner seeds its table with these at
// construction so common keyword and punctuation lookups never take the
// interning slow path.
var (
	SymEmpty      = Symbol{ID: 0, Flags: SymPredefined}
	SymRoot       = Symbol{ID: 1, Flags: SymPredefined}
	SymUnderscore = Symbol{ID: 2, Flags: SymPredefined}
	SymSelfLower  = Symbol{ID: 3, Flags: SymPredefined}
	SymSelfUpper  = Symbol{ID: 4, Flags: SymPredefined}
)

var predefinedStrings = []string{
	SymEmpty.ID:      "",
	SymRoot.ID:       "{{root}}",
	SymUnderscore.ID: "_",
	SymSelfLower.ID:  "self",
	SymSelfUpper.ID:  "Self",
}

// Interner interns strings into Symbol handles and resolves them back.
// Separated from the concrete pool/token types so the lexer core never
// depends on a specific table implementation, and so a future lock-free
// or sharded interner can be substituted without touching callers.
type Interner interface {
	Intern(s string) Symbol
	Lookup(sym Symbol) (string, bool)
	Ref(sym Symbol)
	Unref(sym Symbol)
}

type symbolEntry struct {
	str      string
	hash     uint32
	refcount atomic.Uint32
}

// MutexInterner is a straightforward mutex-guarded symbol table: a linear
// scan for predefined symbols, a hash-filtered linear scan over interned
// entries, and growth by append. The core pool and token allocator never
// hold this lock across their own allocation calls, so contention here
// never propagates into the allocation hot path.
type MutexInterner struct {
	mu      sync.Mutex
	entries []symbolEntry
}

// NewMutexInterner creates an Interner pre-seeded with the predefined
// symbol set.
func NewMutexInterner() *MutexInterner {
	in := &MutexInterner{entries: make([]symbolEntry, len(predefinedStrings))}
	for id, s := range predefinedStrings {
		in.entries[id] = symbolEntry{str: s, hash: fnv1a(s)}
		in.entries[id].refcount.Store(1)
	}
	return in
}

func fnv1a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Intern returns the Symbol for s, creating a new interned entry if s has
// never been seen before. The empty string always maps to SymEmpty.
func (in *MutexInterner) Intern(s string) Symbol {
	if len(s) == 0 {
		return SymEmpty
	}
	hash := fnv1a(s)

	in.mu.Lock()
	defer in.mu.Unlock()

	for id := 0; id < len(predefinedStrings); id++ {
		e := &in.entries[id]
		if e.hash == hash && e.str == s {
			return Symbol{ID: uint32(id), Flags: SymPredefined}
		}
	}

	for id := len(predefinedStrings); id < len(in.entries); id++ {
		e := &in.entries[id]
		if e.hash == hash && e.str == s {
			e.refcount.Add(1)
			return Symbol{ID: uint32(id), Flags: SymInterned}
		}
	}

	id := len(in.entries)
	in.entries = append(in.entries, symbolEntry{str: s, hash: hash})
	in.entries[id].refcount.Store(1)
	return Symbol{ID: uint32(id), Flags: SymInterned}
}

// Lookup resolves sym back to its string. Returns false if sym's ID is out
// of range (e.g. from a different Interner instance).
func (in *MutexInterner) Lookup(sym Symbol) (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(sym.ID) >= len(in.entries) {
		return "", false
	}
	return in.entries[sym.ID].str, true
}

// Ref increments the reference count of an interned (non-predefined)
// symbol. A no-op for predefined symbols, which are never freed.
func (in *MutexInterner) Ref(sym Symbol) {
	if sym.Flags&SymInterned == 0 {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(sym.ID) < len(in.entries) {
		in.entries[sym.ID].refcount.Add(1)
	}
}

// Unref decrements the reference count of an interned symbol, clearing its
// string once the count reaches zero. A no-op for predefined symbols.
func (in *MutexInterner) Unref(sym Symbol) {
	if sym.Flags&SymInterned == 0 {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(sym.ID) >= len(in.entries) {
		return
	}
	e := &in.entries[sym.ID]
	if e.refcount.Add(^uint32(0)) == 0 {
		e.str = ""
	}
}
