// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package chaining implements the separate-chaining fixed table: a fixed
// array of buckets, each an ordered list of (key, value) pairs scanned
// linearly. The table never resizes; callers size it for the workload up
// front via the bucketCount constructor argument.
package chaining

const defaultBuckets = 17

type pair[K any, V any] struct {
	key   K
	value V
}

// Table is a fixed-capacity separate-chaining map.
type Table[K any, V any] struct {
	buckets [][]pair[K, V]
	length  int
	hashFn  func(K) uint64
	equal   func(K, K) bool
	seed    uint64
}

// Option configures a Table at construction time.
type Option func(*options)

type options struct {
	seed uint64
}

// WithSeed fixes the table's internal hash-salting seed, making bucket
// assignment reproducible across runs given the same seed, hash, and
// equal functions.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with bucketCount buckets (default 17 if 0). The
// bucket count is fixed for the table's lifetime; there is no resize.
func New[K any, V any](bucketCount uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	n := int(bucketCount)
	if n == 0 {
		n = defaultBuckets
	}
	return &Table[K, V]{
		buckets: make([][]pair[K, V], n),
		hashFn:  hash,
		equal:   equal,
		seed:    o.seed,
	}
}

func (t *Table[K, V]) hash(key K) uint64 {
	return t.hashFn(key) ^ t.seed
}

func (t *Table[K, V]) bucketIndex(key K) int {
	return int(t.hash(key) % uint64(len(t.buckets)))
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns the bucket count.
func (t *Table[K, V]) Capacity() int { return len(t.buckets) }

// LoadFactor returns live entries divided by bucket count.
func (t *Table[K, V]) LoadFactor() float64 {
	return float64(t.length) / float64(len(t.buckets))
}

// Insert stores value under key, overwriting any existing value for key.
// Insert never fails for this variant.
func (t *Table[K, V]) Insert(key K, value V) error {
	idx := t.bucketIndex(key)
	bucket := t.buckets[idx]
	for i := range bucket {
		if t.equal(bucket[i].key, key) {
			bucket[i].value = value
			return nil
		}
	}
	t.buckets[idx] = append(bucket, pair[K, V]{key: key, value: value})
	t.length++
	return nil
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	bucket := t.buckets[t.bucketIndex(key)]
	for i := range bucket {
		if t.equal(bucket[i].key, key) {
			return bucket[i].value, true
		}
	}
	var zero V
	return zero, false
}

// Update replaces the value for an already-live key.
func (t *Table[K, V]) Update(key K, value V) bool {
	bucket := t.buckets[t.bucketIndex(key)]
	for i := range bucket {
		if t.equal(bucket[i].key, key) {
			bucket[i].value = value
			return true
		}
	}
	return false
}

// Remove deletes key if live, preserving the relative order of the
// bucket's remaining entries.
func (t *Table[K, V]) Remove(key K) bool {
	idx := t.bucketIndex(key)
	bucket := t.buckets[idx]
	for i := range bucket {
		if t.equal(bucket[i].key, key) {
			t.buckets[idx] = append(bucket[:i], bucket[i+1:]...)
			t.length--
			return true
		}
	}
	return false
}

// Clear empties every bucket, keeping the bucket count.
func (t *Table[K, V]) Clear() {
	for i := range t.buckets {
		t.buckets[i] = nil
	}
	t.length = 0
}
