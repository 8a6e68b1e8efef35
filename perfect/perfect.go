// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package perfect implements the two-level perfect-hashing table: a fixed
// top-level array of B buckets, each an independent open-addressing
// sub-table sized quadratically (max(2n^2, 4) slots for n live entries) and
// rebuilt whenever it crosses half-full. The quadratic sizing is what gives
// this design its worst-case O(1) lookup on a static key set, at the cost of
// amortized rebuild work as a bucket grows under dynamic insertion.
package perfect

import (
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristanetworks/hashkit/mapping"
	"github.com/aristanetworks/hashkit/sliceutils"
)

const (
	defaultBucketCount = 16
	maxRebuildAttempts = 8
)

type slot[K any, V any] struct {
	key     K
	value   V
	present bool
}

type bucket[K any, V any] struct {
	slots []slot[K, V]
	count int
}

func newBucket[K any, V any](n int) bucket[K, V] {
	return bucket[K, V]{slots: make([]slot[K, V], secondarySize(n))}
}

// secondarySize is the quadratic sub-table size for n live entries.
func secondarySize(n int) int {
	size := 2 * n * n
	if size < 4 {
		size = 4
	}
	return size
}

// Table is a two-level perfect-hashing map.
type Table[K any, V any] struct {
	buckets []bucket[K, V]
	hashFn  func(K) uint64
	equal   func(K, K) bool
	seed    uint64
	length  int
}

// Option configures a Table at construction time.
type Option func(*options)

type options struct {
	seed uint64
}

// WithSeed fixes the table's internal hash-salting seed, making bucket
// probe sequences reproducible across runs given the same seed, hash, and
// equal functions.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with bucketCount top-level buckets (default 16 if 0).
func New[K any, V any](bucketCount uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b := int(bucketCount)
	if b == 0 {
		b = defaultBucketCount
	}
	buckets := make([]bucket[K, V], b)
	for i := range buckets {
		buckets[i] = newBucket[K, V](0)
	}
	return &Table[K, V]{buckets: buckets, hashFn: hash, equal: equal, seed: o.seed}
}

func (t *Table[K, V]) hash(key K) uint64 {
	return t.hashFn(key) ^ t.seed
}

func (t *Table[K, V]) bucketFor(hash uint64) *bucket[K, V] {
	return &t.buckets[hash%uint64(len(t.buckets))]
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns the top-level bucket count B.
func (t *Table[K, V]) Capacity() int { return len(t.buckets) }

// LoadFactor returns live entries divided by the top-level bucket count.
func (t *Table[K, V]) LoadFactor() float64 {
	return float64(t.length) / float64(len(t.buckets))
}

type probeResult int

const (
	probeOverwritten probeResult = iota
	probeInserted
	probeFull
)

// probeInsert linear-probes b for key, overwriting on a match, placing on
// an empty slot, or reporting probeFull if every slot is occupied by a
// different key.
func (t *Table[K, V]) probeInsert(b *bucket[K, V], hash uint64, key K, value V) probeResult {
	cap := len(b.slots)
	pos := int(hash % uint64(cap))
	for i := 0; i < cap; i++ {
		s := &b.slots[pos]
		if s.present && t.equal(s.key, key) {
			s.value = value
			return probeOverwritten
		}
		if !s.present {
			*s = slot[K, V]{key: key, value: value, present: true}
			b.count++
			return probeInserted
		}
		pos = (pos + 1) % cap
	}
	return probeFull
}

func (t *Table[K, V]) rebuild(b *bucket[K, V]) {
	live := make([]slot[K, V], 0, b.count)
	for _, s := range b.slots {
		if s.present {
			live = append(live, s)
		}
	}
	*b = newBucket[K, V](len(live))
	for _, s := range live {
		t.probeInsert(b, t.hash(s.key), s.key, s.value)
	}
}

// Insert stores value under key. It returns mapping.ErrRebuildExhausted
// only if a bucket rebuild can't converge within a bounded retry budget,
// which does not happen under a well-behaved hash function.
func (t *Table[K, V]) Insert(key K, value V) error {
	hash := t.hash(key)
	b := t.bucketFor(hash)

	switch t.probeInsert(b, hash, key, value) {
	case probeOverwritten:
		return nil
	case probeInserted:
		t.length++
		if b.count*2 > len(b.slots) {
			t.rebuild(b)
		}
		return nil
	}

	// probeFull: the bucket's insert probe traversed every slot without
	// finding room. Rebuild (which grows the bucket, since n > 0 implies
	// secondarySize(n) > n) and retry, bounded.
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), maxRebuildAttempts)
	err := backoff.Retry(func() error {
		t.rebuild(b)
		switch t.probeInsert(b, hash, key, value) {
		case probeOverwritten:
			return nil
		case probeInserted:
			t.length++
			return nil
		}
		return fmt.Errorf("hashkit: bucket still full after rebuild")
	}, bo)
	if err != nil {
		return fmt.Errorf("%w: %s (bucket holds keys %v)",
			mapping.ErrRebuildExhausted, err, sliceutils.ToAnySlice(b.liveKeys()))
	}
	return nil
}

// liveKeys collects the keys currently occupying the bucket, for diagnostic
// formatting when a rebuild doesn't converge.
func (b *bucket[K, V]) liveKeys() []K {
	keys := make([]K, 0, b.count)
	for _, s := range b.slots {
		if s.present {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	hash := t.hash(key)
	b := t.bucketFor(hash)
	cap := len(b.slots)
	pos := int(hash % uint64(cap))
	for i := 0; i < cap; i++ {
		s := &b.slots[pos]
		if !s.present {
			var zero V
			return zero, false
		}
		if t.equal(s.key, key) {
			return s.value, true
		}
		pos = (pos + 1) % cap
	}
	var zero V
	return zero, false
}

// Update replaces the value for an already-live key.
func (t *Table[K, V]) Update(key K, value V) bool {
	hash := t.hash(key)
	b := t.bucketFor(hash)
	cap := len(b.slots)
	pos := int(hash % uint64(cap))
	for i := 0; i < cap; i++ {
		s := &b.slots[pos]
		if !s.present {
			return false
		}
		if t.equal(s.key, key) {
			s.value = value
			return true
		}
		pos = (pos + 1) % cap
	}
	return false
}

// Remove deletes key if live. Perfect's secondary tables carry only a
// present/absent marker per slot, with no tombstone state, so removal
// backward-shifts the rest of the probe cluster to close the gap instead
// of leaving a tombstone behind.
func (t *Table[K, V]) Remove(key K) bool {
	hash := t.hash(key)
	b := t.bucketFor(hash)
	cap := len(b.slots)
	pos := int(hash % uint64(cap))
	for i := 0; i < cap; i++ {
		s := &b.slots[pos]
		if !s.present {
			return false
		}
		if t.equal(s.key, key) {
			t.deleteAt(b, pos)
			b.count--
			t.length--
			return true
		}
		pos = (pos + 1) % cap
	}
	return false
}

// deleteAt removes the entry at j and backward-shifts later entries in the
// cluster into the gap so that no live lookup is ever blocked by a
// premature empty slot.
func (t *Table[K, V]) deleteAt(b *bucket[K, V], j int) {
	cap := len(b.slots)
	k := (j + 1) % cap
	for b.slots[k].present {
		ideal := int(t.hash(b.slots[k].key) % uint64(cap))
		// Distance (forward steps) from ideal to j versus to k. Moving
		// slot k back into j is safe only if doing so doesn't place it
		// before its own ideal position in probe order.
		distJ := (j - ideal + cap) % cap
		distK := (k - ideal + cap) % cap
		if distK >= distJ {
			b.slots[j] = b.slots[k]
			j = k
		}
		k = (k + 1) % cap
	}
	b.slots[j] = slot[K, V]{}
}

// Clear removes all entries and resets every bucket to its minimum size.
func (t *Table[K, V]) Clear() {
	for i := range t.buckets {
		t.buckets[i] = newBucket[K, V](0)
	}
	t.length = 0
}

var _ mapping.Table[int, int] = (*Table[int, int])(nil)
