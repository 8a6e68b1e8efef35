// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package cuckoo implements two-table cuckoo hashing: every key lives in
// exactly one of T1[h1(k)] or T2[h2(k)], and insertion displaces whatever
// already occupies the target slot down a chain that alternates between the
// two tables until it finds a free one or the chain is capped and the table
// grows. See other_examples' salviati-cuckoo implementation for the
// bucketized-cuckoo lineage this single-slot variant is simplified from.
package cuckoo

import (
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristanetworks/hashkit/mapping"
)

const defaultCapacity = 16

// maxGrowAttempts bounds the grow-and-retry loop so a pathologically
// degenerate hash pair can't spin forever; ordinary workloads never come
// close to it since each attempt doubles capacity.
const maxGrowAttempts = 32

type entry[K any, V any] struct {
	key      K
	value    V
	occupied bool
}

// Table is a two-table cuckoo map.
type Table[K any, V any] struct {
	t1, t2 []entry[K, V]
	length int
	hashFn func(K) uint64
	equal  func(K, K) bool
	seed   uint64

	grows int
}

// Stats reports internal counters useful for benchmarking; it is not part
// of the mapping.Table contract.
type Stats struct {
	// Grows is the number of times the table has doubled capacity.
	Grows int
}

// Option configures a Table at construction time.
type Option func(*options)

type options struct {
	seed uint64
}

// WithSeed fixes the table's internal hash-salting seed, making the
// displacement chain reproducible across runs given the same seed, hash,
// and equal functions.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with perTableCapacity slots in each of T1 and T2
// (default 16 if 0).
func New[K any, V any](perTableCapacity uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := int(perTableCapacity)
	if c == 0 {
		c = defaultCapacity
	}
	return &Table[K, V]{
		t1:     make([]entry[K, V], c),
		t2:     make([]entry[K, V], c),
		hashFn: hash,
		equal:  equal,
		seed:   o.seed,
	}
}

func (t *Table[K, V]) hash(key K) uint64 {
	return t.hashFn(key) ^ t.seed
}

func (t *Table[K, V]) capacity() int { return len(t.t1) }

func (t *Table[K, V]) h1(hash uint64) int {
	return int(hash % uint64(t.capacity()))
}

func (t *Table[K, V]) h2(hash uint64) int {
	return int(((hash >> 16) ^ hash) % uint64(t.capacity()))
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns the total slot count across both tables (2*C).
func (t *Table[K, V]) Capacity() int { return 2 * t.capacity() }

// LoadFactor returns live entries divided by the total slot count.
func (t *Table[K, V]) LoadFactor() float64 {
	return float64(t.length) / float64(t.Capacity())
}

// Stats returns the table's internal counters.
func (t *Table[K, V]) Stats() Stats { return Stats{Grows: t.grows} }

// Insert stores value under key, displacing existing entries down an
// alternating-table chain as needed. It returns ErrDisplacementExhausted
// only if growth itself cannot make room, which does not happen under a
// well-behaved hash pair.
func (t *Table[K, V]) Insert(key K, value V) error {
	hash := t.hash(key)
	if i1 := t.h1(hash); t.t1[i1].occupied && t.equal(t.t1[i1].key, key) {
		t.t1[i1].value = value
		return nil
	}
	if i2 := t.h2(hash); t.t2[i2].occupied && t.equal(t.t2[i2].key, key) {
		t.t2[i2].value = value
		return nil
	}

	leftover, ok := t.tryPlace(hash, key, value)
	if ok {
		return nil
	}

	// The chain for this key ran out of steps; leftover is whichever
	// entry ended up without a home at the end of that chain (not
	// necessarily key/value itself, since the chain may have displaced
	// several entries along the way). Grow and keep growing, bounded,
	// until a full reinsertion pass leaves nothing outstanding.
	pending := []entry[K, V]{leftover}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), maxGrowAttempts)
	err := backoff.Retry(func() error {
		pending = t.grow(pending)
		if len(pending) == 0 {
			return nil
		}
		return fmt.Errorf("hashkit: %d entries still displaced after grow", len(pending))
	}, b)
	if err != nil {
		return fmt.Errorf("%w: %s", mapping.ErrDisplacementExhausted, err)
	}
	return nil
}

// tryPlace runs one displacement-chain attempt at the table's current
// capacity, inserting key/value. On success it returns the zero entry and
// true. On failure the table is left with every originally-occupied slot
// still holding some entry, and the one entry left without a home is
// returned along with false.
func (t *Table[K, V]) tryPlace(hash uint64, key K, value V) (entry[K, V], bool) {
	capN := t.capacity()
	curKey, curValue, curHash := key, value, hash
	onFirst := true
	for step := 0; step < capN; step++ {
		var tbl []entry[K, V]
		var idx int
		if onFirst {
			tbl = t.t1
			idx = t.h1(curHash)
		} else {
			tbl = t.t2
			idx = t.h2(curHash)
		}
		e := &tbl[idx]
		if !e.occupied {
			*e = entry[K, V]{key: curKey, value: curValue, occupied: true}
			t.length++
			return entry[K, V]{}, true
		}
		// Evict the occupant and carry it forward to the other table.
		evictedKey, evictedValue := e.key, e.value
		*e = entry[K, V]{key: curKey, value: curValue, occupied: true}
		curKey, curValue = evictedKey, evictedValue
		curHash = t.hash(curKey)
		onFirst = !onFirst
	}
	return entry[K, V]{key: curKey, value: curValue, occupied: true}, false
}

// grow doubles capacity and reinserts every previously-placed entry plus
// pending (the entries the caller couldn't place before calling grow). A
// single reinsertion pass can itself produce fresh displaced entries (an
// unlucky chain at the new capacity), so this repeats against the same new
// capacity, bounded by maxGrowAttempts, and returns whatever is still
// outstanding afterward (empty on success).
func (t *Table[K, V]) grow(pending []entry[K, V]) []entry[K, V] {
	oldT1, oldT2 := t.t1, t.t2
	newCap := t.capacity() * 2
	t.t1 = make([]entry[K, V], newCap)
	t.t2 = make([]entry[K, V], newCap)
	t.length = 0
	t.grows++

	reinsert := make([]entry[K, V], 0, len(oldT1)+len(oldT2)+len(pending))
	for _, e := range oldT1 {
		if e.occupied {
			reinsert = append(reinsert, e)
		}
	}
	for _, e := range oldT2 {
		if e.occupied {
			reinsert = append(reinsert, e)
		}
	}
	reinsert = append(reinsert, pending...)

	for pass := 0; len(reinsert) > 0 && pass < maxGrowAttempts; pass++ {
		next := reinsert
		reinsert = nil
		for _, e := range next {
			if leftover, ok := t.tryPlace(t.hash(e.key), e.key, e.value); !ok {
				reinsert = append(reinsert, leftover)
			}
		}
	}
	return reinsert
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	hash := t.hash(key)
	if e := &t.t1[t.h1(hash)]; e.occupied && t.equal(e.key, key) {
		return e.value, true
	}
	if e := &t.t2[t.h2(hash)]; e.occupied && t.equal(e.key, key) {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Update replaces the value for an already-live key.
func (t *Table[K, V]) Update(key K, value V) bool {
	hash := t.hash(key)
	if e := &t.t1[t.h1(hash)]; e.occupied && t.equal(e.key, key) {
		e.value = value
		return true
	}
	if e := &t.t2[t.h2(hash)]; e.occupied && t.equal(e.key, key) {
		e.value = value
		return true
	}
	return false
}

// Remove deletes key if live.
func (t *Table[K, V]) Remove(key K) bool {
	hash := t.hash(key)
	if e := &t.t1[t.h1(hash)]; e.occupied && t.equal(e.key, key) {
		*e = entry[K, V]{}
		t.length--
		return true
	}
	if e := &t.t2[t.h2(hash)]; e.occupied && t.equal(e.key, key) {
		*e = entry[K, V]{}
		t.length--
		return true
	}
	return false
}

// Clear removes all entries, keeping the current per-table capacity.
func (t *Table[K, V]) Clear() {
	for i := range t.t1 {
		t.t1[i] = entry[K, V]{}
	}
	for i := range t.t2 {
		t.t2[i] = entry[K, V]{}
	}
	t.length = 0
}

var _ mapping.Table[int, int] = (*Table[int, int])(nil)
