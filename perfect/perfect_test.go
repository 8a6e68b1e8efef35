// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package perfect

import (
	"testing"

	"github.com/aristanetworks/hashkit/internal/mix"
)

func newIntTable(bucketCount uint) *Table[int, int] {
	return New[int, int](bucketCount,
		func(k int) uint64 { return mix.Uint64(uint64(k)) },
		func(a, b int) bool { return a == b })
}

func TestInsertLookupUpdate(t *testing.T) {
	m := newIntTable(4)
	m.Insert(42, 100)
	m.Insert(84, 200)
	m.Insert(42, 300)
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
	m := newIntTable(1) // force collisions into a single bucket
	for i := 0; i < 50; i++ {
		m.Insert(i, i)
	}
	for i := 0; i < 50; i += 2 {
		if !m.Remove(i) {
			t.Fatalf("remove(%d) = false", i)
		}
	}
	for i := 0; i < 50; i++ {
		v, ok := m.Lookup(i)
		if i%2 == 0 {
			if ok {
				t.Errorf("lookup(%d) found a removed key", i)
			}
			continue
		}
		if !ok || v != i {
			t.Errorf("lookup(%d) = %v, %v; want %d, true", i, v, ok, i)
		}
	}
	for i := 0; i < 50; i += 2 {
		if err := m.Insert(i, i*10); err != nil {
			t.Fatalf("reinsert(%d) = %v", i, err)
		}
	}
	if got := m.Size(); got != 50 {
		t.Fatalf("size() = %d; want 50", got)
	}
}

func TestRemoveDoesNotHideSurvivorsInSameBucket(t *testing.T) {
	// All three keys land in bucket 0 of a single-bucket table, so they
	// share one probe cluster. Removing the middle arrival must not hide
	// the later one behind a premature empty slot.
	m := newIntTable(1)
	m.Insert(1, 10)
	m.Insert(2, 20)
	m.Insert(3, 30)
	if !m.Remove(2) {
		t.Fatal("remove(2) = false")
	}
	if v, ok := m.Lookup(3); !ok || v != 30 {
		t.Errorf("lookup(3) = %v, %v; want 30, true", v, ok)
	}
	if v, ok := m.Lookup(1); !ok || v != 10 {
		t.Errorf("lookup(1) = %v, %v; want 10, true", v, ok)
	}
}

func TestUpdateAbsent(t *testing.T) {
	m := newIntTable(4)
	if m.Update(7, 1) {
		t.Error("update on absent key returned true")
	}
}

func TestClear(t *testing.T) {
	m := newIntTable(4)
	for i := 0; i < 20; i++ {
		m.Insert(i, i)
	}
	m.Clear()
	if m.Size() != 0 {
		t.Errorf("size() after clear = %d; want 0", m.Size())
	}
	for i := 0; i < 20; i++ {
		if _, ok := m.Lookup(i); ok {
			t.Errorf("lookup(%d) found a key after clear", i)
		}
	}
}

// Secondary sizing: after a bucket rebuild with n entries, the bucket's
// capacity must be exactly max(2n^2, 4).
func TestSecondarySizingAfterRebuild(t *testing.T) {
	m := newIntTable(1)
	const n = 30
	for i := 0; i < n; i++ {
		m.Insert(i, i)
	}
	m.rebuild(&m.buckets[0])
	got := len(m.buckets[0].slots)
	want := secondarySize(m.buckets[0].count)
	if got != want {
		t.Errorf("bucket capacity = %d; want %d (count=%d)", got, want, m.buckets[0].count)
	}
}

func TestGrowthPreservesContentsUnderForcedCollisions(t *testing.T) {
	m := newIntTable(2)
	const n = 500
	for i := 0; i < n; i++ {
		if err := m.Insert(i, i*7); err != nil {
			t.Fatalf("insert(%d) = %v", i, err)
		}
	}
	if got := m.Size(); got != n {
		t.Fatalf("size() = %d; want %d", got, n)
	}
	for i := 0; i < n; i++ {
		if v, ok := m.Lookup(i); !ok || v != i*7 {
			t.Fatalf("lookup(%d) = %v, %v; want %d, true", i, v, ok, i*7)
		}
	}
}

func TestLoadFactorDenominatorIsBucketCount(t *testing.T) {
	m := newIntTable(8)
	for i := 0; i < 4; i++ {
		m.Insert(i, i)
	}
	want := 4.0 / 8.0
	if got := m.LoadFactor(); got != want {
		t.Errorf("loadFactor() = %v; want %v", got, want)
	}
}
