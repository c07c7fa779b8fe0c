// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lexpool provides a lock-free, cache-line-aligned object pool and
// its specialization as a token allocator, together with a double-buffered
// memory-mapped input reader, forming the allocation and I/O substrate for
// a lexical-analysis front end.
//
// # Generic object pool
//
// Pool[T] is a fixed-capacity, lock-free LIFO free-list pool. Slots are
// cache-line aligned to avoid false sharing. A tagged index — a slot index
// packed with a monotonic version counter into a single atomic.Uint64 —
// defeats ABA on the free-list head, the Go-native realization of the
// 128-bit tagged pointer described by the originating design: Go has no
// portable 128-bit CAS, and stashing live pointers inside integers would
// defeat the garbage collector, so the pool indexes into one pinned backing
// slice instead.
//
// Per-goroutine fast paths are explicit: a LocalCache[T] is bound to exactly
// one Pool[T] at construction and amortizes CAS traffic by holding up to 192
// freed slots locally (the high watermark) and publishing any excess to the
// global free-list in one batch.
//
// # Token allocator
//
// TokenAllocator specializes the same free-list discipline for Token
// records, growing by linking 1024-Token blocks on demand rather than
// failing when a fixed capacity is exhausted.
//
// # Input reader
//
// Reader memory-maps a source file and serves bytes through two alternating
// 2 MiB refill buffers, overlapping disk I/O with the consumer's critical
// path. ProcessBuffer exposes interchangeable whitespace-scan kernels
// (scalar and two SWAR-vectorized widths) selected once at package init.
//
// # Thread safety
//
// Pool[T] and TokenAllocator are safe for concurrent use by any number of
// goroutines without external synchronization. LocalCache[T] is not —
// each instance belongs to exactly one goroutine at a time, by convention,
// the same way a C thread owns its __thread cache.
//
// # Dependencies
//
// lexpool depends on:
//   - code.hybscloud.com/iox: ErrWouldBlock and adaptive backoff
//   - code.hybscloud.com/spin: spin-wait primitives for CAS retry loops
//   - golang.org/x/sys/unix: mmap/madvise for the input reader
//   - golang.org/x/sys/cpu: feature detection for scan-kernel selection
package lexpool
