// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import (
	"sync"
	"time"
)

// DefaultReaperInterval is the default period between sweeps of a Reaper.
const DefaultReaperInterval = time.Millisecond

// Reaper periodically flushes the local caches of a Pool back to its
// global free-list, reclaiming objects parked in an idle goroutine's cache
// that would otherwise sit unavailable to the rest of the pool's consumers.
//
// Every registered cache is drained on each sweep, not just the cache the
// Reaper's own goroutine happens to be running on: a reaper that only ever
// drains its caller's cache leaves every other goroutine's idle cache
// permanently unreclaimed, which defeats the point of reaping. Draining the
// pool's full cache registry instead is only possible because LocalCache
// registration is explicit (see cacheRegistry), not left to OS thread-local
// storage the way a single-threaded reaper implementation might assume.
type Reaper[T any] struct {
	pool     *Pool[T]
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewReaper creates a Reaper for pool that sweeps every interval. A
// non-positive interval is replaced with DefaultReaperInterval.
func NewReaper[T any](pool *Pool[T], interval time.Duration) *Reaper[T] {
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	return &Reaper[T]{pool: pool, interval: interval}
}

// Start launches the reaper's background sweep goroutine. Calling Start on
// an already-running Reaper is a no-op.
func (r *Reaper[T]) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.run(r.stop, r.done)
}

func (r *Reaper[T]) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep flushes every cache currently registered with the pool.
func (r *Reaper[T]) sweep() {
	for _, cache := range r.pool.registry.snapshot() {
		r.pool.Flush(cache)
	}
}

// Stop halts the reaper's background goroutine and waits for it to exit.
// Calling Stop on a Reaper that was never started, or was already stopped,
// is a no-op.
func (r *Reaper[T]) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done
}
