// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/lexpool"
)

type slot struct {
	a, b, c, d int64
}

func TestNewPool_ZeroCapacity(t *testing.T) {
	if _, err := lexpool.NewPool[slot](0); err != lexpool.ErrZeroCapacity {
		t.Fatalf("NewPool(0) error = %v, want ErrZeroCapacity", err)
	}
}

func TestPool_AllocFree_SingleSlot(t *testing.T) {
	pool, err := lexpool.NewPool[slot](4)
	if err != nil {
		t.Fatal(err)
	}

	ptr, err := pool.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	ptr.a = 42

	pool.Free(ptr)

	stats := pool.Stats()
	if stats.Allocs != 1 || stats.Frees != 1 {
		t.Fatalf("stats = %+v, want Allocs=1 Frees=1", stats)
	}
	pool.Destroy()
}

func TestPool_Exhaustion(t *testing.T) {
	const capacity = 100
	pool, err := lexpool.NewPool[slot](capacity)
	if err != nil {
		t.Fatal(err)
	}

	ptrs := make([]*slot, capacity)
	for i := range ptrs {
		ptrs[i], err = pool.Alloc()
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
	}

	if _, err := pool.Alloc(); err != lexpool.ErrWouldBlock {
		t.Fatalf("Alloc past capacity error = %v, want ErrWouldBlock", err)
	}

	for _, p := range ptrs {
		pool.Free(p)
	}
	pool.Destroy()
}

func TestPool_FreedSlotIsReusable(t *testing.T) {
	pool, err := lexpool.NewPool[slot](1)
	if err != nil {
		t.Fatal(err)
	}

	first, err := pool.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	pool.Free(first)

	second, err := pool.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("expected the freed slot to be reissued, got distinct pointers")
	}
	pool.Free(second)
	pool.Destroy()
}

func TestPool_FreeForeignPointerPanics(t *testing.T) {
	pool, err := lexpool.NewPool[slot](4)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("Free of a foreign pointer did not panic")
		}
	}()
	var stray slot
	pool.Free(&stray)
}

func TestPool_DestroyPanicsOnLeak(t *testing.T) {
	pool, err := lexpool.NewPool[slot](4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Alloc(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("Destroy with outstanding allocations did not panic")
		}
	}()
	pool.Destroy()
}

func TestPool_Concurrent_AllocFree(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}

	const goroutines = 8
	iterations := 100_000
	if raceEnabled {
		// The race detector's instrumentation overhead turns this test's
		// full iteration count into a multi-minute run; cut it down to stay
		// within a reasonable wall-clock budget while still exercising the
		// CAS loops under -race.
		iterations = 10_000
	}
	pool, err := lexpool.NewPool[slot](256)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				ptr, err := pool.Alloc()
				for err == lexpool.ErrWouldBlock {
					ptr, err = pool.Alloc()
				}
				ptr.a = int64(i)
				pool.Free(ptr)
			}
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	want := uint64(goroutines * iterations)
	if stats.Allocs != want || stats.Frees != want {
		t.Fatalf("stats = %+v, want Allocs=Frees=%d", stats, want)
	}
	pool.Destroy()
}

func TestPool_BatchAlloc_ExceedsCapacity(t *testing.T) {
	pool, err := lexpool.NewPool[slot](10)
	if err != nil {
		t.Fatal(err)
	}
	cache := pool.NewCache()
	defer cache.Close()

	dst := make([]*slot, 20)
	n := pool.BatchAlloc(cache, dst)
	if n != 10 {
		t.Fatalf("BatchAlloc delivered %d, want 10 (pool exhausted)", n)
	}

	pool.BatchFree(cache, dst[:n])
	cache.Close()
	pool.Destroy()
}

func TestPool_BatchAlloc_PrefersLocalCache(t *testing.T) {
	pool, err := lexpool.NewPool[slot](256)
	if err != nil {
		t.Fatal(err)
	}
	cache := pool.NewCache()

	seed := make([]*slot, 50)
	n := pool.BatchAlloc(cache, seed)
	if n != 50 {
		t.Fatalf("seed BatchAlloc delivered %d, want 50", n)
	}
	pool.BatchFree(cache, seed)
	if cache.Len() != 50 {
		t.Fatalf("cache.Len() = %d, want 50 after BatchFree", cache.Len())
	}

	before := pool.Stats().CacheHits
	dst := make([]*slot, 30)
	n = pool.BatchAlloc(cache, dst)
	if n != 30 {
		t.Fatalf("BatchAlloc delivered %d, want 30", n)
	}
	after := pool.Stats().CacheHits
	if after-before != 30 {
		t.Fatalf("cache hits increased by %d, want 30", after-before)
	}

	pool.BatchFree(cache, dst)
	cache.Close()
	pool.Destroy()
}

func TestPool_BatchFree_SpillsAtHighWatermark(t *testing.T) {
	pool, err := lexpool.NewPool[slot](1024)
	if err != nil {
		t.Fatal(err)
	}
	cache := pool.NewCache()

	dst := make([]*slot, 300)
	n := pool.BatchAlloc(cache, dst)
	if n != 300 {
		t.Fatalf("BatchAlloc delivered %d, want 300", n)
	}

	pool.BatchFree(cache, dst)
	if cache.Len() > 192 {
		t.Fatalf("cache.Len() = %d, exceeds the high watermark (192)", cache.Len())
	}
	if cache.Len() == 0 {
		t.Fatal("BatchFree drained the cache entirely instead of retaining up to the watermark")
	}

	cache.Close()
	if cache.Len() != 0 {
		t.Fatalf("cache.Len() after Close = %d, want 0", cache.Len())
	}
	pool.Destroy()
}

func TestPool_BatchFree_DrainsAllSlots(t *testing.T) {
	const capacity = 512
	pool, err := lexpool.NewPool[slot](capacity)
	if err != nil {
		t.Fatal(err)
	}
	cache := pool.NewCache()

	// Allocate every slot and free more than cacheSize at once, so BatchFree
	// must route the overflow through batchPublish's multi-slot chain
	// rather than the single-entry local-cache path.
	all := make([]*slot, capacity)
	n := pool.BatchAlloc(cache, all)
	if n != capacity {
		t.Fatalf("BatchAlloc delivered %d, want %d", n, capacity)
	}
	pool.BatchFree(cache, all)
	cache.Close()

	// Every freed slot must still be reachable: draining the pool again
	// should deliver exactly capacity distinct pointers, not fewer.
	drain := pool.NewCache()
	defer drain.Close()
	redrawn := make([]*slot, capacity)
	got := pool.BatchAlloc(drain, redrawn)
	if got != capacity {
		t.Fatalf("re-drain after BatchFree delivered %d, want %d (slots silently detached from the free-list)", got, capacity)
	}

	seen := make(map[*slot]struct{}, capacity)
	for _, ptr := range redrawn {
		if _, dup := seen[ptr]; dup {
			t.Fatalf("re-drain returned the same slot pointer twice: %p", ptr)
		}
		seen[ptr] = struct{}{}
	}

	pool.BatchFree(drain, redrawn)
	drain.Close()
	pool.Destroy()
}

func TestPool_ForeignCachePanics(t *testing.T) {
	poolA, err := lexpool.NewPool[slot](4)
	if err != nil {
		t.Fatal(err)
	}
	poolB, err := lexpool.NewPool[slot](4)
	if err != nil {
		t.Fatal(err)
	}
	cacheB := poolB.NewCache()
	defer cacheB.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("BatchAlloc with a foreign cache did not panic")
		}
	}()
	poolA.BatchAlloc(cacheB, make([]*slot, 1))
}
