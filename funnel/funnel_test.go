// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package funnel

import (
	"testing"

	"github.com/aristanetworks/hashkit/internal/mix"
	"github.com/aristanetworks/hashkit/test"
)

func newIntTable(capacity uint) *Table[int, int] {
	return New[int, int](capacity,
		func(k int) uint64 { return mix.Uint64(uint64(k)) },
		func(a, b int) bool { return a == b })
}

func TestInsertLookupUpdate(t *testing.T) {
	m := newIntTable(64)
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

func TestInvalidDeltaPanics(t *testing.T) {
	test.ShouldPanic(t, func() {
		New[int, int](64, func(k int) uint64 { return uint64(k) }, func(a, b int) bool { return a == b }, WithDelta(1.5))
	})
}

// TestSeedForcedCollisionsAndOverflow forces collisions that drive entries
// through the primary levels into the overflow sections and, eventually,
// growth.
func TestSeedForcedCollisionsAndOverflow(t *testing.T) {
	m := newIntTable(64)
	const n = 2000
	for i := 0; i < n; i++ {
		if err := m.Insert(i, i*11); err != nil {
			t.Fatalf("insert(%d) = %v", i, err)
		}
	}
	if got := m.Size(); got != n {
		t.Fatalf("size() = %d; want %d", got, n)
	}
	for i := 0; i < n; i++ {
		if v, ok := m.Lookup(i); !ok || v != i*11 {
			t.Fatalf("lookup(%d) = %v, %v; want %d, true", i, v, ok, i*11)
		}
	}
}

func TestRemoveLeavesTombstoneNotBlockingLaterKeys(t *testing.T) {
	m := newIntTable(256)
	for i := 0; i < 100; i++ {
		m.Insert(i, i)
	}
	for i := 0; i < 100; i += 2 {
		if !m.Remove(i) {
			t.Fatalf("remove(%d) = false", i)
		}
	}
	for i := 1; i < 100; i += 2 {
		if v, ok := m.Lookup(i); !ok || v != i {
			t.Fatalf("lookup(%d) = %v, %v; want %d, true", i, v, ok, i)
		}
	}
	for i := 0; i < 100; i += 2 {
		if _, ok := m.Lookup(i); ok {
			t.Errorf("lookup(%d) found a removed key", i)
		}
	}
}

// TestReinsertStillLiveInSecondaryLevelDoesNotDuplicate forces a key out of
// level 0 (its own level-0 bucket is full at insertion time), frees a slot in
// that same bucket by deleting a different occupant, then re-inserts the
// displaced key. Insert must find it still live in the secondary level and
// overwrite it there rather than placing a second copy in the freed slot.
func TestReinsertStillLiveInSecondaryLevelDoesNotDuplicate(t *testing.T) {
	m := newIntTable(64)
	const n = 2000
	for i := 0; i < n; i++ {
		if err := m.Insert(i, i); err != nil {
			t.Fatalf("insert(%d) = %v", i, err)
		}
	}

	var victim int
	found := false
	for _, level := range m.levels[1:] {
		for _, c := range level {
			if c.state == occupied {
				victim = c.key
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		t.Fatal("setup: no key landed past level 0; nothing to test")
	}

	hash := m.hash(victim)
	level0 := m.levels[0]
	numBuckets0 := len(level0) / m.beta
	b0 := m.levelBucket(0, numBuckets0, hash)
	bucket0 := level0[b0*m.beta : b0*m.beta+m.beta]

	neighborIdx := -1
	for j := range bucket0 {
		if bucket0[j].state == occupied {
			neighborIdx = j
			break
		}
	}
	if neighborIdx < 0 {
		t.Fatal("setup: victim's level-0 bucket has no occupant to free")
	}
	bucket0[neighborIdx] = cell[int, int]{state: deleted}
	m.length--

	sizeBefore := m.Size()
	if err := m.Insert(victim, -1); err != nil {
		t.Fatalf("insert(%d) = %v", victim, err)
	}
	if got := m.Size(); got != sizeBefore {
		t.Fatalf("size() = %d after reinsert; want %d (no duplicate)", got, sizeBefore)
	}
	if v, ok := m.Lookup(victim); !ok || v != -1 {
		t.Fatalf("lookup(%d) = %v, %v; want -1, true", victim, v, ok)
	}

	count := 0
	for _, level := range m.levels {
		for _, c := range level {
			if c.state == occupied && c.key == victim {
				count++
			}
		}
	}
	for _, c := range m.overflow {
		if c.state == occupied && c.key == victim {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("found %d live copies of key %d; want 1", count, victim)
	}
}

func TestNoReorderingAcrossUpdates(t *testing.T) {
	m := newIntTable(64)
	m.Insert(1, 10)
	m.Insert(2, 20)
	if !m.Update(1, 99) {
		t.Fatal("update(1) = false")
	}
	if v, ok := m.Lookup(1); !ok || v != 99 {
		t.Fatalf("lookup(1) = %v, %v; want 99, true", v, ok)
	}
	if v, ok := m.Lookup(2); !ok || v != 20 {
		t.Fatalf("lookup(2) = %v, %v; want 20, true", v, ok)
	}
}
