// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package lp

import (
	"testing"

	"github.com/aristanetworks/hashkit/internal/mix"
)

func newIntTable(sizeHint uint) *Table[int, int] {
	return New[int, int](sizeHint,
		func(k int) uint64 { return mix.Uint64(uint64(k)) },
		func(a, b int) bool { return a == b })
}

// TestSeedInsertLookupUpdate exercises the basic insert/lookup/update path.
func TestSeedInsertLookupUpdate(t *testing.T) {
	m := newIntTable(0)
	if err := m.Insert(42, 100); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(84, 200); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(42, 300); err != nil {
		t.Fatal(err)
	}
	if v, ok := m.Lookup(42); !ok || v != 300 {
		t.Errorf("lookup(42) = %v, %v; want 300, true", v, ok)
	}
	if v, ok := m.Lookup(84); !ok || v != 200 {
		t.Errorf("lookup(84) = %v, %v; want 200, true", v, ok)
	}
	if got := m.Size(); got != 2 {
		t.Errorf("size() = %d; want 2", got)
	}
}

func TestRemoveThenReinsert(t *testing.T) {
	m := newIntTable(0)
	m.Insert(1, 1)
	if !m.Remove(1) {
		t.Fatal("remove(1) = false; want true")
	}
	if _, ok := m.Lookup(1); ok {
		t.Fatal("lookup(1) found a removed key")
	}
	if m.Remove(1) {
		t.Fatal("remove(1) a second time = true; want false")
	}
	if err := m.Insert(1, 2); err != nil {
		t.Fatal(err)
	}
	if v, ok := m.Lookup(1); !ok || v != 2 {
		t.Errorf("lookup(1) after reinsert = %v, %v; want 2, true", v, ok)
	}
}

func TestUpdateAbsent(t *testing.T) {
	m := newIntTable(0)
	if m.Update(1, 1) {
		t.Fatal("update on absent key returned true")
	}
}

func TestClear(t *testing.T) {
	m := newIntTable(0)
	for i := 0; i < 20; i++ {
		m.Insert(i, i)
	}
	m.Clear()
	if m.Size() != 0 {
		t.Fatalf("size() after clear = %d; want 0", m.Size())
	}
	for i := 0; i < 20; i++ {
		if _, ok := m.Lookup(i); ok {
			t.Fatalf("lookup(%d) found a value after clear", i)
		}
	}
}

// Growth preserves contents, with tombstones left behind by an interleaved
// delete pass.
func TestGrowthPreservesContentsWithTombstones(t *testing.T) {
	m := newIntTable(4)
	for i := 0; i < 500; i++ {
		m.Insert(i, i*10)
		if i%3 == 0 {
			m.Remove(i)
		}
	}
	for i := 0; i < 500; i++ {
		v, ok := m.Lookup(i)
		if i%3 == 0 {
			if ok {
				t.Fatalf("lookup(%d) present after removal", i)
			}
			continue
		}
		if !ok || v != i*10 {
			t.Fatalf("lookup(%d) = %v, %v; want %d, true", i, v, ok, i*10)
		}
	}
}

func TestUniqueKeysAfterManyUpdates(t *testing.T) {
	m := newIntTable(0)
	for i := 0; i < 50; i++ {
		m.Insert(i%10, i)
	}
	if m.Size() != 10 {
		t.Fatalf("size() = %d; want 10", m.Size())
	}
}
