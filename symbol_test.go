// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/lexpool"
)

func TestMutexInterner_EmptyString(t *testing.T) {
	in := lexpool.NewMutexInterner()
	sym := in.Intern("")
	if sym != lexpool.SymEmpty {
		t.Fatalf("Intern(\"\") = %+v, want SymEmpty", sym)
	}
}

func TestMutexInterner_PredefinedFastPath(t *testing.T) {
	in := lexpool.NewMutexInterner()
	sym := in.Intern("_")
	if sym != lexpool.SymUnderscore {
		t.Fatalf("Intern(\"_\") = %+v, want SymUnderscore", sym)
	}
	if sym.Flags&lexpool.SymPredefined == 0 {
		t.Fatal("expected SymPredefined flag set")
	}
}

func TestMutexInterner_InternDedup(t *testing.T) {
	in := lexpool.NewMutexInterner()
	a := in.Intern("hello")
	b := in.Intern("hello")
	if a != b {
		t.Fatalf("interning the same string twice produced distinct symbols: %+v vs %+v", a, b)
	}
	if a.Flags&lexpool.SymInterned == 0 {
		t.Fatal("expected SymInterned flag set on a runtime-interned symbol")
	}
}

func TestMutexInterner_RoundTrip(t *testing.T) {
	in := lexpool.NewMutexInterner()
	sym := in.Intern("identifier")
	str, ok := in.Lookup(sym)
	if !ok || str != "identifier" {
		t.Fatalf("Lookup(%+v) = (%q, %v), want (\"identifier\", true)", sym, str, ok)
	}
}

func TestMutexInterner_RefUnref(t *testing.T) {
	in := lexpool.NewMutexInterner()
	sym := in.Intern("shared")
	in.Ref(sym)
	in.Unref(sym)
	str, ok := in.Lookup(sym)
	if !ok || str != "shared" {
		t.Fatalf("symbol freed prematurely: (%q, %v)", str, ok)
	}

	in.Unref(sym)
	str, ok = in.Lookup(sym)
	if !ok {
		t.Fatal("Lookup of a zero-refcount symbol should still succeed (entry retained, string cleared)")
	}
	if str != "" {
		t.Fatalf("string not cleared after refcount reached zero: %q", str)
	}
}

func TestMutexInterner_PredefinedUnrefIsNoop(t *testing.T) {
	in := lexpool.NewMutexInterner()
	in.Unref(lexpool.SymRoot)
	in.Unref(lexpool.SymRoot)
	str, ok := in.Lookup(lexpool.SymRoot)
	if !ok || str != "{{root}}" {
		t.Fatalf("predefined symbol corrupted by Unref: (%q, %v)", str, ok)
	}
}

func TestMutexInterner_Concurrent(t *testing.T) {
	in := lexpool.NewMutexInterner()
	const goroutines = 8
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				in.Intern("concurrent-symbol")
			}
		}()
	}
	wg.Wait()

	sym := in.Intern("concurrent-symbol")
	str, ok := in.Lookup(sym)
	if !ok || str != "concurrent-symbol" {
		t.Fatalf("Lookup after concurrent interning = (%q, %v)", str, ok)
	}
}
