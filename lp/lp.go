// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package lp implements the linear-probing open-addressing table: a single
// contiguous array of 3-state slots (empty, occupied, deleted), probed
// sequentially on collision. It's the baseline variant this module's other
// tables are measured against.
package lp

import "math/bits"

const (
	defaultSize  = 8
	growLoad     = 0.6
	growthFactor = 2
)

type state uint8

const (
	empty state = iota
	occupied
	deleted
)

type entry[K any, V any] struct {
	key   K
	value V
	state state
}

// Table is a linear-probing open-addressing map.
type Table[K any, V any] struct {
	seed    uint64
	entries []entry[K, V]
	length  int
	hash    func(K) uint64
	equal   func(K, K) bool
}

// Option configures a Table at construction.
type Option func(*options)

type options struct {
	seed uint64
}

// WithSeed fixes the table's internal position-mixing seed, making probe
// sequences (and therefore growth points) reproducible across runs.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with sizeHint slots rounded up to a power of two
// (defaultSize when sizeHint is 0); it doubles once an insert would take
// the load above 0.6. hash and equal define hashing and equality over K; they
// must agree (equal keys must hash equal).
func New[K any, V any](sizeHint uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	n := defaultSize
	if sizeHint != 0 {
		n = 1 << bits.Len(sizeHint-1)
	}
	return &Table[K, V]{
		entries: make([]entry[K, V], n),
		hash:    hash,
		equal:   equal,
		seed:    o.seed,
	}
}

func (t *Table[K, V]) mask() int {
	return len(t.entries) - 1
}

func (t *Table[K, V]) position(hash uint64) int {
	return int(hash^t.seed) & t.mask()
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns the slot count.
func (t *Table[K, V]) Capacity() int { return len(t.entries) }

// LoadFactor returns live entries divided by slot count.
func (t *Table[K, V]) LoadFactor() float64 {
	if len(t.entries) == 0 {
		return 0
	}
	return float64(t.length) / float64(len(t.entries))
}

// Insert stores value under key, overwriting any existing value. Insert
// never fails for this variant; the error return always nil, kept only to
// satisfy mapping.Table.
func (t *Table[K, V]) Insert(key K, value V) error {
	if float64(t.length+1)/float64(len(t.entries)) > growLoad {
		t.resize(len(t.entries) * growthFactor)
	}
	t.insert(t.hash(key), key, value)
	return nil
}

func (t *Table[K, V]) insert(hash uint64, key K, value V) {
	start := t.position(hash)
	position := start
	firstTombstone := -1
	for i := 0; i < len(t.entries); i++ {
		e := &t.entries[position]
		switch e.state {
		case empty:
			if firstTombstone >= 0 {
				position = firstTombstone
				e = &t.entries[position]
			}
			*e = entry[K, V]{key: key, value: value, state: occupied}
			t.length++
			return
		case deleted:
			if firstTombstone < 0 {
				firstTombstone = position
			}
		case occupied:
			if t.equal(e.key, key) {
				e.value = value
				return
			}
		}
		position = (position + 1) & t.mask()
	}
	// Probed the whole table without an empty slot: every slot is
	// occupied or deleted. Grow and retry.
	t.resize(len(t.entries) * growthFactor)
	t.insert(hash, key, value)
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	if e := t.find(key); e != nil {
		return e.value, true
	}
	var zero V
	return zero, false
}

func (t *Table[K, V]) find(key K) *entry[K, V] {
	hash := t.hash(key)
	position := t.position(hash)
	for i := 0; i < len(t.entries); i++ {
		e := &t.entries[position]
		switch e.state {
		case empty:
			return nil
		case occupied:
			if t.equal(e.key, key) {
				return e
			}
		}
		position = (position + 1) & t.mask()
	}
	return nil
}

// Update replaces the value for an already-live key.
func (t *Table[K, V]) Update(key K, value V) bool {
	e := t.find(key)
	if e == nil {
		return false
	}
	e.value = value
	return true
}

// Remove deletes key if live.
func (t *Table[K, V]) Remove(key K) bool {
	e := t.find(key)
	if e == nil {
		return false
	}
	var zeroK K
	var zeroV V
	e.key = zeroK
	e.value = zeroV
	e.state = deleted
	t.length--
	return true
}

// Clear removes all entries, keeping the current slot count.
func (t *Table[K, V]) Clear() {
	for i := range t.entries {
		t.entries[i] = entry[K, V]{}
	}
	t.length = 0
}

func (t *Table[K, V]) resize(size int) {
	old := t.entries
	t.entries = make([]entry[K, V], size)
	t.length = 0
	for _, e := range old {
		if e.state != occupied {
			continue
		}
		t.insert(t.hash(e.key), e.key, e.value)
	}
}
