// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/spin"
)

// Span records a token's byte offsets into the source being lexed.
type Span struct {
	Start, End int
}

// Delimiter identifies which bracketing punctuation an open/close delimiter
// token represents.
type Delimiter uint8

const (
	DelimParen Delimiter = iota
	DelimBrace
	DelimBracket
)

// LitKind distinguishes the literal variants a Literal token can carry.
type LitKind uint8

const (
	LitBool LitKind = iota
	LitByte
	LitChar
	LitInteger
	LitFloat
	LitStr
	LitStrRaw
	LitByteStr
	LitByteStrRaw
	LitCStr
	LitCStrRaw
	LitErr
)

// Literal holds a literal token's value. The original record is a tagged
// union keyed by Kind; Go has no union type, so every variant's payload is
// a plain field here instead, selected by Kind the same way the union's
// active member was selected by its discriminant.
type Literal struct {
	Kind   LitKind
	Symbol Symbol // symbol table entry for string-shaped literals
	Suffix Symbol // type suffix, e.g. u8/f32, SymEmpty if absent

	BoolVal  bool
	CharVal  rune
	ByteVal  uint8
	IntVal   int64
	FloatVal float64

	Str         string // LitStr, LitByteStr
	RawHashes   uint8  // LitStrRaw, LitCStrRaw: number of '#' delimiters
	ErrorCode   uint32 // LitErr
	ErrorString string // LitErr
}

// Ident is an identifier token: a symbol plus whether it was written with
// the raw-identifier prefix (r#ident) that suppresses keyword meaning.
type Ident struct {
	Symbol Symbol
	IsRaw  bool
	Span   Span
}

// CommentKind distinguishes line (`//`) from block (`/** */`) doc comments.
type CommentKind uint8

const (
	CommentLine CommentKind = iota
	CommentBlock
)

// DocComment holds a documentation comment's metadata.
type DocComment struct {
	Kind      CommentKind
	AttrStyle int
	Symbol    Symbol
}

// TokenKind enumerates every token shape the lexer can produce.
type TokenKind uint8

const (
	TkEq TokenKind = iota
	TkLt
	TkLe
	TkEqEq
	TkNe
	TkGe
	TkGt
	TkAndAnd
	TkOrOr
	TkBang
	TkTilde
	TkPlus
	TkMinus
	TkStar
	TkSlash
	TkPercent
	TkCaret
	TkAnd
	TkOr
	TkShl
	TkShr
	TkPlusEq
	TkMinusEq
	TkStarEq
	TkSlashEq
	TkPercentEq
	TkCaretEq
	TkAndEq
	TkOrEq
	TkShlEq
	TkShrEq

	TkAt
	TkDot
	TkDotDot
	TkDotDotDot
	TkDotDotEq
	TkComma
	TkSemi
	TkColon
	TkPathSep
	TkRArrow
	TkLArrow
	TkFatArrow
	TkPound
	TkDollar
	TkQuestion
	TkSingleQuote
	TkOpenDelim
	TkCloseDelim
	TkLiteral
	TkIdent
	TkNtIdent   // an Ident captured from a macro's nonterminal binding
	TkLifetime
	TkNtLifetime // a Lifetime captured from a macro's nonterminal binding
	TkInterpolated
	TkDocComment
	TkError
	TkEof
)

// tokenBlockSize is the number of Tokens bump-allocated per growth step.
const tokenBlockSize = 1024

type tokenBlock struct {
	tokens [tokenBlockSize]Token
	used   atomic.Uint32
}

// Token is a single lexed token. nextFree links freed tokens into the
// allocator's free list and is meaningless while the token is live.
//
// TkIdent and TkNtIdent both carry their payload in Ident, as do TkLifetime
// and TkNtLifetime (a lifetime is an Ident spelled with a leading quote);
// the Nt* kinds only differ in provenance (substituted from a macro's
// nonterminal binding rather than lexed directly), which callers track via
// Kind alone. TkInterpolated's payload in the original is a recursive
// Nonterminal (an entire parsed token tree substituted into a macro body);
// this port represents that as a single boxed Token rather than modeling
// the full Nonterminal AST, which is out of scope for the allocation/I/O
// substrate this package provides.
type Token struct {
	Kind TokenKind
	Span Span

	Delim        Delimiter
	Literal      Literal
	Ident        Ident
	DocComment   DocComment
	Interpolated *Token

	nextFree uint32
}

// TokenAllocator is a growable, block-linked lock-free pool specialized
// for Token. Unlike Pool[T], capacity is not fixed: exhausting the current
// block triggers allocation of a fresh tokenBlockSize block, chained onto
// the allocator rather than failing the caller, matching a lexer's need to
// never reject a token purely for running out of preallocated space.
type TokenAllocator struct {
	_ noCopy

	blocks atomic.Pointer[[]*tokenBlock]
	growMu sync.Mutex

	freeHead       taggedIndex
	totalAllocated atomic.Uint64
}

// NewTokenAllocator creates a TokenAllocator with enough preallocated
// blocks to hold capacityHint tokens without growing. A non-positive
// capacityHint still allocates one block, since the allocator always needs
// somewhere to bump-allocate its first token from.
func NewTokenAllocator(capacityHint int) *TokenAllocator {
	blockCount := (capacityHint + tokenBlockSize - 1) / tokenBlockSize
	if blockCount < 1 {
		blockCount = 1
	}

	blocks := make([]*tokenBlock, blockCount)
	for i := range blocks {
		blocks[i] = &tokenBlock{}
	}

	ta := &TokenAllocator{}
	ta.blocks.Store(&blocks)
	ta.freeHead.store(nilIndex, 0)
	return ta
}

func (ta *TokenAllocator) tokenAt(globalIdx uint32) *Token {
	blocks := *ta.blocks.Load()
	blockIdx := globalIdx / tokenBlockSize
	slotIdx := globalIdx % tokenBlockSize
	return &blocks[blockIdx].tokens[slotIdx]
}

// indexOf recovers a token's global index by locating which block's array
// contains its address. Blocks are few (one per 1024 live tokens) and
// grown rarely, so the linear scan here is cheap relative to a lexer's
// per-token work.
func (ta *TokenAllocator) indexOf(tok *Token) (uint32, bool) {
	blocks := *ta.blocks.Load()
	addr := uintptr(unsafe.Pointer(tok))
	const tokenSize = unsafe.Sizeof(Token{})

	for i, b := range blocks {
		base := uintptr(unsafe.Pointer(&b.tokens[0]))
		end := base + tokenBlockSize*tokenSize
		if addr < base || addr >= end {
			continue
		}
		off := addr - base
		if off%tokenSize != 0 {
			return 0, false
		}
		return uint32(i)*tokenBlockSize + uint32(off/tokenSize), true
	}
	return 0, false
}

// growBlock appends a fresh block once the active one is full. It
// double-checks under growMu so concurrent callers racing into the slow
// path don't each append their own block.
func (ta *TokenAllocator) growBlock() {
	ta.growMu.Lock()
	defer ta.growMu.Unlock()

	blocks := *ta.blocks.Load()
	if len(blocks) > 0 && blocks[len(blocks)-1].used.Load() < tokenBlockSize {
		return
	}

	grown := make([]*tokenBlock, len(blocks)+1)
	copy(grown, blocks)
	grown[len(blocks)] = &tokenBlock{}
	ta.blocks.Store(&grown)
}

// Alloc returns a fresh Token of the given kind and span. It first tries
// the free list (tokens returned by Free), then bump-allocates from the
// active block, growing the allocator if that block is full.
func (ta *TokenAllocator) Alloc(kind TokenKind, span Span) *Token {
	sw := spin.Wait{}
	idx, ver := ta.freeHead.load()
	for idx != nilIndex {
		tok := ta.tokenAt(idx)
		nextIdx := tok.nextFree
		if ta.freeHead.compareAndSwap(idx, ver, nextIdx, ver+1) {
			*tok = Token{Kind: kind, Span: span}
			return tok
		}
		sw.Once()
		idx, ver = ta.freeHead.load()
	}

	sw = spin.Wait{}
	for {
		// Blocks fill in order, so the non-full ones form a suffix; walk
		// back to the earliest of them so preallocated blocks are used.
		blocks := *ta.blocks.Load()
		i := len(blocks) - 1
		for i > 0 && blocks[i-1].used.Load() < tokenBlockSize {
			i--
		}
		active := blocks[i]
		used := active.used.Load()
		if used >= tokenBlockSize {
			ta.growBlock()
			continue
		}
		if active.used.CompareAndSwap(used, used+1) {
			tok := &active.tokens[used]
			*tok = Token{Kind: kind, Span: span}
			ta.totalAllocated.Add(1)
			return tok
		}
		sw.Once()
	}
}

// Free returns tok to the allocator's free list. Passing a token this
// allocator did not issue, or freeing the same token twice, is caller
// misuse. Free panics on a token it cannot recognize at all.
func (ta *TokenAllocator) Free(tok *Token) {
	idx, ok := ta.indexOf(tok)
	if !ok {
		panic(ErrBadPointer)
	}
	*tok = Token{}

	sw := spin.Wait{}
	for {
		headIdx, headVer := ta.freeHead.load()
		tok.nextFree = headIdx
		if ta.freeHead.compareAndSwap(headIdx, headVer, idx, headVer+1) {
			return
		}
		sw.Once()
	}
}

// NewLiteral allocates a Tk_Literal token carrying lit.
func (ta *TokenAllocator) NewLiteral(lit Literal, span Span) *Token {
	tok := ta.Alloc(TkLiteral, span)
	tok.Literal = lit
	return tok
}

// NewIdent allocates a Tk_Ident token carrying ident.
func (ta *TokenAllocator) NewIdent(ident Ident, span Span) *Token {
	tok := ta.Alloc(TkIdent, span)
	tok.Ident = ident
	return tok
}

// NewNtIdent allocates a Tk_NtIdent token: an identifier substituted from a
// macro's nonterminal binding rather than lexed directly from source.
func (ta *TokenAllocator) NewNtIdent(ident Ident, span Span) *Token {
	tok := ta.Alloc(TkNtIdent, span)
	tok.Ident = ident
	return tok
}

// NewLifetime allocates a Tk_Lifetime token carrying ident (a lifetime is
// an Ident spelled with a leading quote).
func (ta *TokenAllocator) NewLifetime(ident Ident, span Span) *Token {
	tok := ta.Alloc(TkLifetime, span)
	tok.Ident = ident
	return tok
}

// NewNtLifetime allocates a Tk_NtLifetime token: a lifetime substituted
// from a macro's nonterminal binding rather than lexed directly.
func (ta *TokenAllocator) NewNtLifetime(ident Ident, span Span) *Token {
	tok := ta.Alloc(TkNtLifetime, span)
	tok.Ident = ident
	return tok
}

// NewInterpolated allocates a Tk_Interpolated token boxing inner, standing
// in for the original's Nonterminal-carrying variant (an entire token tree
// substituted into a macro body).
func (ta *TokenAllocator) NewInterpolated(inner *Token, span Span) *Token {
	tok := ta.Alloc(TkInterpolated, span)
	tok.Interpolated = inner
	return tok
}

// NewDelim allocates a Tk_OpenDelim or Tk_CloseDelim token for delim,
// depending on isOpen.
func (ta *TokenAllocator) NewDelim(delim Delimiter, isOpen bool, span Span) *Token {
	kind := TkCloseDelim
	if isOpen {
		kind = TkOpenDelim
	}
	tok := ta.Alloc(kind, span)
	tok.Delim = delim
	return tok
}

// TotalAllocated returns the number of tokens ever bump-allocated from a
// block (i.e. excluding free-list reuse), mirroring the C pool's
// total_allocated diagnostic counter.
func (ta *TokenAllocator) TotalAllocated() uint64 {
	return ta.totalAllocated.Load()
}

// Cleanup discards every block and resets the allocator to a single fresh
// block, as if newly constructed. Callers must ensure no Token from this
// allocator is still referenced afterward.
func (ta *TokenAllocator) Cleanup() {
	ta.growMu.Lock()
	defer ta.growMu.Unlock()

	fresh := []*tokenBlock{{}}
	ta.blocks.Store(&fresh)
	ta.freeHead.store(nilIndex, 0)
	ta.totalAllocated.Store(0)
}
