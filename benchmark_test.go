// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool_test

import (
	"testing"

	"code.hybscloud.com/lexpool"
	"code.hybscloud.com/spin"
)

type token struct {
	start, end uint32
	kind       uint8
}

func BenchmarkPool_AllocFree(b *testing.B) {
	pool, err := lexpool.NewPool[token](1024)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tok, err := pool.Alloc()
			if err != nil {
				b.Fatal(err)
			}
			spin.Yield()
			pool.Free(tok)
		}
	})
}

func BenchmarkPool_HighContention_SmallPool(b *testing.B) {
	pool, err := lexpool.NewPool[token](16)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tok, err := pool.Alloc()
			if err != nil {
				continue
			}
			spin.Yield()
			pool.Free(tok)
		}
	})
}

func BenchmarkPool_LocalCache_BatchAllocFree(b *testing.B) {
	pool, err := lexpool.NewPool[token](4096)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		cache := pool.NewCache()
		defer cache.Close()
		dst := make([]*token, 32)
		for pb.Next() {
			n := pool.BatchAlloc(cache, dst)
			pool.BatchFree(cache, dst[:n])
		}
	})
}

func BenchmarkAlignedMemBlock(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = lexpool.AlignedMemBlock()
	}
}

func BenchmarkAlignedMem_4K(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = lexpool.AlignedMem(4096, lexpool.PageSize)
	}
}

func BenchmarkCacheLineAlignedMem_4K(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = lexpool.CacheLineAlignedMem(4096)
	}
}
