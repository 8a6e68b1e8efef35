// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import (
	"testing"

	"github.com/aristanetworks/hashkit/internal/mix"
)

func newIntTable(perTableCap uint) *Table[int, int] {
	return New[int, int](perTableCap,
		func(k int) uint64 { return mix.Uint64(uint64(k)) },
		func(a, b int) bool { return a == b })
}

// TestSeedGrowth drives enough inserts to force multiple table growths and
// checks every previously-inserted key still resolves afterward.
func TestSeedGrowth(t *testing.T) {
	m := newIntTable(2)
	for i := 1; i <= 1000; i++ {
		if err := m.Insert(i, 10*i); err != nil {
			t.Fatalf("insert(%d) = %v", i, err)
		}
	}
	for i := 1; i <= 1000; i++ {
		v, ok := m.Lookup(i)
		if !ok || v != 10*i {
			t.Fatalf("lookup(%d) = %v, %v; want %d, true", i, v, ok, 10*i)
		}
	}
	if got := m.Size(); got != 1000 {
		t.Fatalf("size() = %d; want 1000", got)
	}
	if m.Stats().Grows == 0 {
		t.Error("expected at least one grow event for 1000 inserts starting at capacity 2")
	}
}

func TestPlacementInvariant(t *testing.T) {
	m := newIntTable(16)
	for i := 0; i < 200; i++ {
		m.Insert(i, i)
	}
	for i := 0; i < 200; i++ {
		hash := m.hash(i)
		i1, i2 := m.h1(hash), m.h2(hash)
		inT1 := m.t1[i1].occupied && m.t1[i1].key == i
		inT2 := m.t2[i2].occupied && m.t2[i2].key == i
		if !inT1 && !inT2 {
			t.Fatalf("key %d is in neither T1[h1] nor T2[h2]", i)
		}
	}
}

func TestUpdateOverwritesWithoutGrowth(t *testing.T) {
	m := newIntTable(16)
	m.Insert(5, 1)
	m.Insert(5, 2)
	if v, ok := m.Lookup(5); !ok || v != 2 {
		t.Fatalf("lookup(5) = %v, %v; want 2, true", v, ok)
	}
	if m.Size() != 1 {
		t.Fatalf("size() = %d; want 1", m.Size())
	}
}

func TestRemoveAbsent(t *testing.T) {
	m := newIntTable(8)
	if m.Remove(99) {
		t.Fatal("remove on empty table returned true")
	}
}
