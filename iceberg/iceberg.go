// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package iceberg implements the three-level Iceberg table: a primary
// block array, a smaller secondary block array for primary overflow, and a
// per-primary-block overflow list as a last resort. Most keys resolve in
// the primary level; the secondary and tertiary levels exist to absorb the
// tail of an uneven hash distribution without resizing on every bump.
package iceberg

import "github.com/aristanetworks/hashkit/mapping"

const (
	// s1 is the primary block size.
	s1 = 64
	// s2 is the secondary block size.
	s2 = 8

	defaultBlocks    = 64
	growthThreshold  = 0.85
	blockHashDivisor = 37
)

type slot[K any, V any] struct {
	key      K
	value    V
	occupied bool
}

type pair[K any, V any] struct {
	key   K
	value V
}

// Table is a three-level Iceberg map.
type Table[K any, V any] struct {
	l1 [][]slot[K, V]
	l2 [][]slot[K, V]
	l3 [][]pair[K, V]

	blocks int
	length int

	hashFn func(K) uint64
	equal  func(K, K) bool
	seed   uint64
}

// Option configures a Table at construction time.
type Option func(*options)

type options struct {
	seed uint64
}

// WithSeed fixes the table's internal hash-salting seed, making level
// routing reproducible across runs given the same seed, hash, and equal
// functions.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with the given initial primary/secondary block count
// B (default 64 if 0).
func New[K any, V any](blockCount uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b := int(blockCount)
	if b == 0 {
		b = defaultBlocks
	}
	t := &Table[K, V]{hashFn: hash, equal: equal, seed: o.seed}
	t.allocate(b)
	return t
}

func (t *Table[K, V]) hash(key K) uint64 {
	return t.hashFn(key) ^ t.seed
}

func (t *Table[K, V]) allocate(blocks int) {
	t.blocks = blocks
	t.l1 = make([][]slot[K, V], blocks)
	t.l2 = make([][]slot[K, V], blocks)
	t.l3 = make([][]pair[K, V], blocks)
	for i := range t.l1 {
		t.l1[i] = make([]slot[K, V], s1)
		t.l2[i] = make([]slot[K, V], s2)
	}
}

func (t *Table[K, V]) hA(hash uint64) int { return int(hash % uint64(t.blocks)) }
func (t *Table[K, V]) hB(hash uint64) int {
	return int((hash / blockHashDivisor) % uint64(t.blocks))
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns B, the primary/secondary block count.
func (t *Table[K, V]) Capacity() int { return t.blocks }

// LoadFactor returns live entries divided by B*(S1+S2).
func (t *Table[K, V]) LoadFactor() float64 {
	return float64(t.length) / float64(t.blocks*(s1+s2))
}

func findMatch[K any, V any](block []slot[K, V], key K, equal func(K, K) bool) int {
	for i := range block {
		if block[i].occupied && equal(block[i].key, key) {
			return i
		}
	}
	return -1
}

func findEmpty[K any, V any](block []slot[K, V]) int {
	for i := range block {
		if !block[i].occupied {
			return i
		}
	}
	return -1
}

// Insert stores value under key. Insert never fails for this variant: the
// tertiary overflow list has no fixed cap, so there is always a place to
// put a new entry.
func (t *Table[K, V]) Insert(key K, value V) error {
	t.maybeGrow()
	t.place(key, value)
	return nil
}

func (t *Table[K, V]) place(key K, value V) {
	hash := t.hash(key)
	a, b := t.hA(hash), t.hB(hash)
	l1, l2, overflow := t.l1[a], t.l2[b], t.l3[a]

	// A key can be live in any of the three levels; check all of them
	// before occupying a free slot, or a key that settled in L2/L3 when
	// L1 was full gets duplicated into L1 the moment an L1 slot frees up.
	if i := findMatch(l1, key, t.equal); i >= 0 {
		l1[i].value = value
		return
	}
	if i := findMatch(l2, key, t.equal); i >= 0 {
		l2[i].value = value
		return
	}
	for i := range overflow {
		if t.equal(overflow[i].key, key) {
			overflow[i].value = value
			return
		}
	}

	if i := findEmpty(l1); i >= 0 {
		l1[i] = slot[K, V]{key: key, value: value, occupied: true}
		t.length++
		return
	}
	if i := findEmpty(l2); i >= 0 {
		l2[i] = slot[K, V]{key: key, value: value, occupied: true}
		t.length++
		return
	}
	t.l3[a] = append(overflow, pair[K, V]{key: key, value: value})
	t.length++
}

func (t *Table[K, V]) maybeGrow() {
	if t.blocks == 0 {
		return
	}
	if float64(t.length)/float64(t.blocks*(s1+s2)) >= growthThreshold {
		t.grow()
	}
}

func (t *Table[K, V]) grow() {
	all := t.collect()
	t.allocate(t.blocks * 2)
	t.length = 0
	for _, e := range all {
		t.place(e.key, e.value)
	}
}

func (t *Table[K, V]) collect() []pair[K, V] {
	out := make([]pair[K, V], 0, t.length)
	for _, block := range t.l1 {
		for _, s := range block {
			if s.occupied {
				out = append(out, pair[K, V]{key: s.key, value: s.value})
			}
		}
	}
	for _, block := range t.l2 {
		for _, s := range block {
			if s.occupied {
				out = append(out, pair[K, V]{key: s.key, value: s.value})
			}
		}
	}
	for _, list := range t.l3 {
		out = append(out, list...)
	}
	return out
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	hash := t.hash(key)
	a, b := t.hA(hash), t.hB(hash)
	if i := findMatch(t.l1[a], key, t.equal); i >= 0 {
		return t.l1[a][i].value, true
	}
	if i := findMatch(t.l2[b], key, t.equal); i >= 0 {
		return t.l2[b][i].value, true
	}
	for _, p := range t.l3[a] {
		if t.equal(p.key, key) {
			return p.value, true
		}
	}
	var zero V
	return zero, false
}

// Update replaces the value for an already-live key. Functionally this is
// remove-then-insert, but overwriting in place is cheaper and observably
// equivalent since the key's location doesn't change.
func (t *Table[K, V]) Update(key K, value V) bool {
	hash := t.hash(key)
	a, b := t.hA(hash), t.hB(hash)
	if i := findMatch(t.l1[a], key, t.equal); i >= 0 {
		t.l1[a][i].value = value
		return true
	}
	if i := findMatch(t.l2[b], key, t.equal); i >= 0 {
		t.l2[b][i].value = value
		return true
	}
	for i := range t.l3[a] {
		if t.equal(t.l3[a][i].key, key) {
			t.l3[a][i].value = value
			return true
		}
	}
	return false
}

// Remove deletes key if live.
func (t *Table[K, V]) Remove(key K) bool {
	hash := t.hash(key)
	a, b := t.hA(hash), t.hB(hash)
	if i := findMatch(t.l1[a], key, t.equal); i >= 0 {
		t.l1[a][i] = slot[K, V]{}
		t.length--
		return true
	}
	if i := findMatch(t.l2[b], key, t.equal); i >= 0 {
		t.l2[b][i] = slot[K, V]{}
		t.length--
		return true
	}
	overflow := t.l3[a]
	for i := range overflow {
		if t.equal(overflow[i].key, key) {
			t.l3[a] = append(overflow[:i], overflow[i+1:]...)
			t.length--
			return true
		}
	}
	return false
}

// Clear removes all entries, keeping the current block count.
func (t *Table[K, V]) Clear() {
	t.allocate(t.blocks)
	t.length = 0
}

var _ mapping.Table[int, int] = (*Table[int, int])(nil)
