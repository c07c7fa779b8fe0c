// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import "sync/atomic"

// nilIndex is the tagged-index sentinel playing the role of a null pointer:
// no backing slice is ever this large, so it can never collide with a real
// slot index.
const nilIndex uint32 = ^uint32(0)

// taggedIndex is an atomic pair of (slot index, version) packed into one
// uint64: the low 32 bits hold the index, the high 32 bits hold a monotonic
// version counter. Every successful CAS on a free-list head increments the
// version, so a slot index that is popped and later re-pushed is
// distinguishable from its earlier incarnation — this defeats ABA on the
// free-list the same way a 128-bit (address, version) tagged pointer would
// in a language with a native double-word CAS.
//
// Go has no portable 128-bit atomic compare-and-swap, and a C-style tagged
// *pointer* would require smuggling live heap addresses through integers
// stored in an atomic — invisible to the garbage collector. Indexing into a
// single pinned backing slice and tagging the index instead sidesteps both
// problems while keeping the same ABA-safety argument: 32 version bits is
// far beyond the 16-bit minimum the degraded (non-128-bit) scheme requires.
//
// taggedIndex must only be read and written through Load/Store/CAS, never
// by field — there are no exported fields.
type taggedIndex struct {
	packed atomic.Uint64
}

func packTagged(index, version uint32) uint64 {
	return uint64(version)<<32 | uint64(index)
}

func unpackTagged(v uint64) (index, version uint32) {
	return uint32(v), uint32(v >> 32)
}

// load returns the current (index, version) pair.
func (t *taggedIndex) load() (index, version uint32) {
	return unpackTagged(t.packed.Load())
}

// store unconditionally replaces the pair. Used only at construction time
// and in contexts (single-writer chaining) where no concurrent reader can
// observe a torn value, matching the relaxed stores the C source uses to
// link freshly-chained nodes before publishing them with one CAS.
func (t *taggedIndex) store(index, version uint32) {
	t.packed.Store(packTagged(index, version))
}

// compareAndSwap performs a CAS for the hot retry loops in Pool[T] and
// TokenAllocator. Go's atomic CAS is strong: it fails only when the stored
// pair differs from (oldIndex, oldVersion), and the caller then reloads and
// retries.
func (t *taggedIndex) compareAndSwap(oldIndex, oldVersion, newIndex, newVersion uint32) bool {
	return t.packed.CompareAndSwap(packTagged(oldIndex, oldVersion), packTagged(newIndex, newVersion))
}
