// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import "sync"

// Spec data model for the thread-local cache: a fixed-size array of up to
// cacheSize slot payload pointers and a count. BatchFree keeps at most
// cacheHighWatermark entries in it and spills the rest to the global
// free-list. BatchAlloc never refills the cache from the global lists, and
// no code path reads cacheLowWatermark.
const (
	cacheSize          = 256
	cacheLowWatermark  = 64
	cacheHighWatermark = 192
)

// LocalCache is a goroutine-affine buffer of pooled payload pointers,
// standing in for the thread-local cache the C implementation keeps in TLS.
// Go has no safe equivalent of a thread-local binding to an arbitrary pool,
// so the cache is instead an explicit handle: callers obtain one from
// Pool[T].NewCache and confine its BatchAlloc/BatchFree traffic to a single
// goroutine, then Close it when done, which flushes any remaining entries
// back to the pool.
//
// A LocalCache's owning goroutine never needs to coordinate with anyone
// else for its own BatchAlloc/BatchFree calls, but a Reaper sweeping the
// pool's cache registry runs on a separate goroutine and must be able to
// drain a cache out from under its owner concurrently; mu exists solely to
// make that one cross-goroutine interaction (owner traffic vs. a reap)
// safe, not to make LocalCache a general-purpose concurrent structure.
type LocalCache[T any] struct {
	_     noCopy
	pool  *Pool[T]
	mu    sync.Mutex
	items [cacheSize]*T
	count int
}

// Len returns the number of payload pointers currently held locally.
func (c *LocalCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Close flushes every entry held by the cache back to its pool's free-list
// and unregisters it, so a Reaper no longer considers it live.
func (c *LocalCache[T]) Close() {
	c.pool.Flush(c)
	c.pool.registry.remove(c)
}

// cacheRegistry tracks every live LocalCache[T] bound to a Pool[T]. Its sole
// purpose is to give a Reaper somewhere to enumerate: the spec's own C
// reaper only ever walks the calling thread's own cache, which silently
// leaves every other thread's idle cache undrained. Rather than port that
// bug forward, draining here enumerates every registered cache, which is
// only possible at all because registration is explicit instead of
// TLS-implicit.
type cacheRegistry[T any] struct {
	mu     sync.Mutex
	caches map[*LocalCache[T]]struct{}
}

func (r *cacheRegistry[T]) init() {
	r.caches = make(map[*LocalCache[T]]struct{})
}

func (r *cacheRegistry[T]) add(c *LocalCache[T]) {
	r.mu.Lock()
	r.caches[c] = struct{}{}
	r.mu.Unlock()
}

func (r *cacheRegistry[T]) remove(c *LocalCache[T]) {
	r.mu.Lock()
	delete(r.caches, c)
	r.mu.Unlock()
}

// snapshot returns the set of currently registered caches. The result may be
// stale the instant it is returned (new caches may register, old ones may
// close), which is acceptable for a Reaper: it drains whatever was live at
// sweep time and will catch stragglers on its next pass.
func (r *cacheRegistry[T]) snapshot() []*LocalCache[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*LocalCache[T], 0, len(r.caches))
	for c := range r.caches {
		out = append(out, c)
	}
	return out
}

// NewCache creates a LocalCache bound to this pool and registers it so a
// Reaper started on this pool will drain it. Callers must Close the cache
// when it is no longer in use.
func (p *Pool[T]) NewCache() *LocalCache[T] {
	c := &LocalCache[T]{pool: p}
	p.registry.add(c)
	return c
}

// BatchAlloc fills dst with up to len(dst) payload pointers, preferring
// cache's local entries before touching the pool's global lists, and
// returns how many entries were actually delivered. A short count (fewer
// than len(dst)) means the pool is exhausted; it is not itself an error.
//
// BatchAlloc panics with ErrForeignCache if cache was not created by this
// pool.
func (p *Pool[T]) BatchAlloc(cache *LocalCache[T], dst []*T) int {
	if cache.pool != p {
		panic(ErrForeignCache)
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()

	want := len(dst)
	fromCache := min(want, cache.count)
	if fromCache > 0 {
		copy(dst[:fromCache], cache.items[cache.count-fromCache:cache.count])
		cache.count -= fromCache
		p.stats.cacheHits.Add(uint64(fromCache))
	}

	remaining := want - fromCache
	if remaining == 0 {
		return fromCache
	}

	indices := p.batchDrain(remaining)
	for i, idx := range indices {
		dst[fromCache+i] = p.payloadPtr(idx)
	}

	// batchDrain never walks past the requested count, so the combined
	// total can never exceed want; there is no overshoot to spill back
	// into the cache here, unlike the refill path in BatchFree.
	return fromCache + len(indices)
}

// BatchFree returns ptrs to cache, spilling to the pool's global free-list
// whenever the cache would otherwise grow past cacheHighWatermark. It also
// proactively drains the cache down to cacheHighWatermark first, so a
// single oversized batch cannot leave the cache permanently bloated.
//
// BatchFree panics with ErrForeignCache if cache was not created by this
// pool.
func (p *Pool[T]) BatchFree(cache *LocalCache[T], ptrs []*T) {
	if cache.pool != p {
		panic(ErrForeignCache)
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.count >= cacheHighWatermark {
		p.spill(cache, cache.count-cacheHighWatermark)
	}

	room := cacheHighWatermark - cache.count
	toCache := min(len(ptrs), room)
	copy(cache.items[cache.count:cache.count+toCache], ptrs[:toCache])
	cache.count += toCache

	rest := ptrs[toCache:]
	if len(rest) == 0 {
		return
	}

	indices := make([]uint32, len(rest))
	for i, ptr := range rest {
		idx, ok := p.indexOf(ptr)
		if !ok {
			panic(ErrBadPointer)
		}
		indices[i] = idx
	}
	p.batchPublish(indices)
}

// spill publishes the oldest n entries of cache to the pool's global
// free-list and compacts the remaining entries to the front of the array.
// Callers must hold cache.mu.
func (p *Pool[T]) spill(cache *LocalCache[T], n int) {
	if n <= 0 {
		return
	}
	indices := make([]uint32, n)
	for i := 0; i < n; i++ {
		idx, ok := p.indexOf(cache.items[i])
		if !ok {
			panic(ErrBadPointer)
		}
		indices[i] = idx
	}
	p.batchPublish(indices)
	copy(cache.items[:cache.count-n], cache.items[n:cache.count])
	cache.count -= n
}

// Flush unconditionally returns every entry cache is holding to the pool's
// global free-list. A Reaper calls this on every registered cache on each
// sweep; an empty cache returns immediately.
func (p *Pool[T]) Flush(cache *LocalCache[T]) {
	if cache.pool != p {
		panic(ErrForeignCache)
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.count == 0 {
		return
	}
	p.spill(cache, cache.count)
}
