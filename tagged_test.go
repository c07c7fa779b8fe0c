// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lexpool

import "testing"

func TestTaggedIndex_StoreLoad(t *testing.T) {
	var ti taggedIndex
	ti.store(7, 3)
	idx, ver := ti.load()
	if idx != 7 || ver != 3 {
		t.Fatalf("load() = (%d, %d), want (7, 3)", idx, ver)
	}
}

func TestTaggedIndex_CompareAndSwap(t *testing.T) {
	var ti taggedIndex
	ti.store(1, 0)

	if !ti.compareAndSwap(1, 0, 2, 1) {
		t.Fatal("expected CAS to succeed on matching (index, version)")
	}
	idx, ver := ti.load()
	if idx != 2 || ver != 1 {
		t.Fatalf("load() after CAS = (%d, %d), want (2, 1)", idx, ver)
	}

	if ti.compareAndSwap(1, 0, 3, 2) {
		t.Fatal("expected CAS to fail on stale (index, version)")
	}
}

func TestTaggedIndex_ABADistinguishedByVersion(t *testing.T) {
	var ti taggedIndex
	ti.store(5, 0)

	// Pop.
	idx, ver := ti.load()
	if !ti.compareAndSwap(idx, ver, nilIndex, ver+1) {
		t.Fatal("pop CAS failed")
	}

	// Re-push the same index; the version must have advanced, so a stale
	// (index, version) pair captured before the pop can never incorrectly
	// match again.
	idx2, ver2 := ti.load()
	if !ti.compareAndSwap(idx2, ver2, 5, ver2+1) {
		t.Fatal("re-push CAS failed")
	}

	if ti.compareAndSwap(idx, ver, nilIndex, ver+1) {
		t.Fatal("stale (index, version) pair incorrectly matched after an ABA cycle")
	}
}

func TestPackUnpackTagged(t *testing.T) {
	cases := []struct {
		index, version uint32
	}{
		{0, 0},
		{nilIndex, 0},
		{123456, 7},
		{0, 0xFFFFFFFF},
	}
	for _, c := range cases {
		packed := packTagged(c.index, c.version)
		idx, ver := unpackTagged(packed)
		if idx != c.index || ver != c.version {
			t.Fatalf("roundtrip(%d, %d) = (%d, %d)", c.index, c.version, idx, ver)
		}
	}
}
