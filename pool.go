// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/lexpool/internal"
	"code.hybscloud.com/spin"
)

// payloadOffset is the fixed byte offset from a slot's base to its payload.
// The spec's slot layout reserves 16 bytes for the next-pointer field
// (the size of a 128-bit tagged pointer) even though this port's taggedIndex
// only occupies 8 of them; the remaining 8 bytes are explicit padding, kept
// so the layout arithmetic matches the documented "ceil(16 + ceil(O,16),
// cacheline)" formula exactly.
const payloadOffset = 16

// Pool is a fixed-capacity, lock-free LIFO free-list pool of cache-line
// aligned slots holding values of type T. It is safe for concurrent use by
// any number of goroutines. The zero value is not usable; construct with
// NewPool.
type Pool[T any] struct {
	_ noCopy

	region     []byte // cache-line aligned backing storage for all slots
	base       unsafe.Pointer
	slotStride uintptr
	capacity   uint32

	freeHead    taggedIndex // released slots, LIFO
	reserveHead taggedIndex // never-yet-issued slots

	stats poolStats

	registry cacheRegistry[T] // live LocalCache[T] handles, drained by a Reaper
}

// poolStats holds the pool's observability counters. None of these are
// load-bearing for correctness; they exist purely for diagnostics, padded
// onto their own approximate cache line so their high write traffic does
// not contend with the hot free-list fields above. Go has no field-level
// alignment attribute, so this separation is best-effort via padding, not a
// compiler guarantee.
type poolStats struct {
	_          [internal.CacheLineSize]byte
	allocs     atomic.Uint64
	frees      atomic.Uint64
	contention atomic.Uint64
	casSuccess atomic.Uint64
	casFail    atomic.Uint64
	cacheHits  atomic.Uint64
	_          [internal.CacheLineSize]byte
}

// Stats is a point-in-time snapshot of a Pool's counters.
type Stats struct {
	Allocs     uint64
	Frees      uint64
	Contention uint64
	CASSuccess uint64
	CASFail    uint64
	CacheHits  uint64
}

// NewPool creates a pool of the given fixed capacity holding values of type
// T. Every slot is chained into the reserve list in LIFO order at
// construction; the free-list (released slots) starts empty.
//
// Returns ErrZeroCapacity if capacity <= 0.
func NewPool[T any](capacity int) (*Pool[T], error) {
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}

	var zero T
	payloadSize := unsafe.Sizeof(zero)
	payloadAligned := internal.AlignUp(payloadSize, 16)
	slotStride := internal.AlignUp(payloadOffset+payloadAligned, internal.CacheLineSize)

	region := CacheLineAlignedMem(capacity * int(slotStride))

	p := &Pool[T]{
		region:     region,
		base:       unsafe.Pointer(unsafe.SliceData(region)),
		slotStride: slotStride,
		capacity:   uint32(capacity),
	}
	p.registry.init()

	prev := nilIndex
	for i := uint32(0); i < uint32(capacity); i++ {
		p.nextPtr(i).store(prev, 0)
		prev = i
	}
	p.reserveHead.store(prev, 0)
	p.freeHead.store(nilIndex, 0)

	return p, nil
}

// Cap returns the pool's fixed capacity.
func (p *Pool[T]) Cap() int { return int(p.capacity) }

func (p *Pool[T]) slotAddr(i uint32) unsafe.Pointer {
	return unsafe.Add(p.base, uintptr(i)*p.slotStride)
}

func (p *Pool[T]) nextPtr(i uint32) *taggedIndex {
	return (*taggedIndex)(p.slotAddr(i))
}

func (p *Pool[T]) payloadPtr(i uint32) *T {
	return (*T)(unsafe.Add(p.slotAddr(i), uintptr(payloadOffset)))
}

// indexOf recovers a slot's index from a payload pointer previously
// returned by this pool. Returns false if ptr was not issued by this pool
// (debug-build callers should additionally assert cache-line alignment;
// caller misuse beyond this check is undefined behavior per the error
// taxonomy).
func (p *Pool[T]) indexOf(ptr *T) (uint32, bool) {
	addr := uintptr(unsafe.Pointer(ptr))
	base := uintptr(p.base)
	if addr < base+payloadOffset {
		return 0, false
	}
	slotBase := addr - payloadOffset
	off := slotBase - base
	if off%p.slotStride != 0 {
		return 0, false
	}
	idx := off / p.slotStride
	if idx >= uintptr(p.capacity) {
		return 0, false
	}
	return uint32(idx), true
}

// Alloc removes one slot from the pool and returns a pointer to its
// payload. Returns ErrWouldBlock if the pool is exhausted: both the
// free-list and the reserve list are empty.
//
// Alloc CAS uses acquire ordering: a slot's prior owner may have written its
// payload with release-ordered free, and this allocation must observe those
// writes happen-before any of its own reads.
func (p *Pool[T]) Alloc() (*T, error) {
	list := &p.freeHead
	idx, ver := list.load()
	if idx == nilIndex {
		list = &p.reserveHead
		idx, ver = list.load()
	}

	sw := spin.Wait{}
	for {
		if idx == nilIndex {
			if list == &p.freeHead {
				list = &p.reserveHead
				idx, ver = list.load()
				continue
			}
			return nil, ErrWouldBlock
		}
		nextIdx, _ := p.nextPtr(idx).load()
		if list.compareAndSwap(idx, ver, nextIdx, ver+1) {
			p.stats.casSuccess.Add(1)
			break
		}
		p.stats.casFail.Add(1)
		sw.Once()
		idx, ver = list.load()
	}

	p.stats.allocs.Add(1)
	return p.payloadPtr(idx), nil
}

// AllocWait behaves like Alloc but blocks using adaptive backoff instead of
// returning ErrWouldBlock immediately. It exists for callers such as a
// reclaim-trailing producer that would rather wait briefly for a concurrent
// Free than handle exhaustion explicitly on every call.
func (p *Pool[T]) AllocWait() *T {
	var bo iox.Backoff
	for {
		ptr, err := p.Alloc()
		if err == nil {
			return ptr
		}
		bo.Wait()
	}
}

// Free returns a previously allocated payload pointer to the pool. Passing
// a pointer this pool did not issue, or freeing the same pointer twice, is
// caller misuse: undefined behavior, per the error taxonomy. Free panics on
// a pointer this pool cannot recognize at all, which is the cheapest
// available debug-build safety net for the cache-line-alignment assertion
// the spec calls for.
//
// Free CAS uses release ordering, publishing the pointer write to the
// slot's next field to whichever goroutine's Alloc later observes it.
func (p *Pool[T]) Free(ptr *T) {
	idx, ok := p.indexOf(ptr)
	if !ok {
		panic(ErrBadPointer)
	}

	sw := spin.Wait{}
	for {
		headIdx, headVer := p.freeHead.load()
		p.nextPtr(idx).store(headIdx, headVer+1)
		if p.freeHead.compareAndSwap(headIdx, headVer, idx, headVer+1) {
			p.stats.casSuccess.Add(1)
			break
		}
		p.stats.casFail.Add(1)
		sw.Once()
	}

	p.stats.frees.Add(1)
}

// batchPublish chains indices[0:n] into a single run — indices[0] is the
// head that Alloc will hand out first, indices[n-1] is the tail that links
// onward to whatever was already on the free-list — and publishes the whole
// run with one CAS. This is the key algorithm behind batch-free: push cost
// is O(1) CAS per batch, not per element.
func (p *Pool[T]) batchPublish(indices []uint32) {
	n := len(indices)
	if n == 0 {
		return
	}
	for i := 0; i < n-1; i++ {
		// Every internal link gets a real, non-zero version, not just the
		// eventual free-list head: a bare-zero version here would be
		// indistinguishable from an index's very first tagging and reopen
		// the same ABA window the head CAS below is built to close.
		_, curVer := p.nextPtr(indices[i]).load()
		p.nextPtr(indices[i]).store(indices[i+1], curVer+1)
	}
	sw := spin.Wait{}
	for {
		headIdx, headVer := p.freeHead.load()
		p.nextPtr(indices[n-1]).store(headIdx, headVer+1)
		if p.freeHead.compareAndSwap(headIdx, headVer, indices[0], headVer+1) {
			p.stats.casSuccess.Add(1)
			break
		}
		p.stats.casFail.Add(1)
		sw.Once()
	}
	p.stats.frees.Add(uint64(n))
}

// batchDrain pulls up to want slots off the global lists in chunks of up to
// batchChunk, returning the indices obtained. Used by BatchAlloc's global
// fallback once the caller's LocalCache is exhausted.
func (p *Pool[T]) batchDrain(want int) []uint32 {
	out := make([]uint32, 0, want)
	for len(out) < want {
		list := &p.freeHead
		idx, ver := list.load()
		if idx == nilIndex {
			list = &p.reserveHead
			idx, ver = list.load()
		}
		if idx == nilIndex {
			break
		}

		request := want - len(out)
		if request > batchChunk {
			request = batchChunk
		}

		var chunk []uint32
		sw := spin.Wait{}
		for {
			chunk = chunk[:0]
			cursor := idx
			for len(chunk) < request && cursor != nilIndex {
				chunk = append(chunk, cursor)
				cursor, _ = p.nextPtr(cursor).load()
			}
			if list.compareAndSwap(idx, ver, cursor, ver+1) {
				p.stats.casSuccess.Add(1)
				break
			}
			p.stats.casFail.Add(1)
			sw.Once()
			idx, ver = list.load()
			if idx == nilIndex {
				chunk = chunk[:0]
				break
			}
		}
		if len(chunk) == 0 {
			// The chosen list emptied under contention; re-select, so the
			// drain stops only once both lists are seen empty.
			p.stats.contention.Add(1)
			continue
		}
		out = append(out, chunk...)
		p.stats.allocs.Add(uint64(len(chunk)))
	}
	return out
}

// batchChunk bounds the size of a single chunk walked and CAS-published
// during batch operations.
const batchChunk = 64

// Stats returns a snapshot of the pool's observability counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Allocs:     p.stats.allocs.Load(),
		Frees:      p.stats.frees.Load(),
		Contention: p.stats.contention.Load(),
		CASSuccess: p.stats.casSuccess.Load(),
		CASFail:    p.stats.casFail.Load(),
		CacheHits:  p.stats.cacheHits.Load(),
	}
}

// Destroy asserts that every allocated slot has been freed and panics with
// ErrPoolLeak otherwise, mirroring the C implementation's abort() on the
// same condition. Callers should Flush every LocalCache bound to this pool
// before calling Destroy.
func (p *Pool[T]) Destroy() {
	s := p.Stats()
	if s.Allocs != s.Frees {
		panic(ErrPoolLeak)
	}
}
