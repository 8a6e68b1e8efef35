// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package ipbt implements the partitioned-with-fingerprint table: a fixed
// array of buckets, each holding its entries left-justified plus an
// auxiliary fingerprint-to-slot index so a lookup can usually reject a
// miss without ever touching the key itself. Bucket and fingerprint shape
// are both derived from the capacity budget via ln(N), matching the
// memory/lookup-speed tradeoff the variant is named for.
package ipbt

import (
	"fmt"
	"math"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristanetworks/hashkit/internal/mix"
	"github.com/aristanetworks/hashkit/mapping"
)

const (
	defaultCapacity   = 16
	defaultShapeConst = 2.0

	growthThreshold = 0.7
	maxSaltAttempts = 16
)

type entry[K any, V any] struct {
	key   K
	value V
}

type bucket[K any, V any] struct {
	entries     []entry[K, V]
	salt        uint64
	fingerprint map[uint32]int
}

func newBucket[K any, V any](capacity int, salt uint64) bucket[K, V] {
	return bucket[K, V]{
		entries:     make([]entry[K, V], 0, capacity),
		salt:        salt,
		fingerprint: make(map[uint32]int, capacity),
	}
}

// Table is a partitioned-with-fingerprint map.
type Table[K any, V any] struct {
	buckets []bucket[K, V]

	n              int
	c              float64
	bucketCapacity int
	numBuckets     int
	length         int
	nextSalt       uint64

	hashFn func(K) uint64
	equal  func(K, K) bool
	seed   uint64
}

// Option configures a Table at construction time.
type Option func(*options)

type options struct {
	shapeConst float64
	seed       uint64
}

// WithShapeConstant overrides the shape constant c used in the
// bucket-capacity formula; default 2.0.
func WithShapeConstant(c float64) Option {
	return func(o *options) { o.shapeConst = c }
}

// WithSeed fixes the table's internal hash-salting seed, making bucket
// routing and fingerprints reproducible across runs given the same seed,
// hash, and equal functions.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with capacity budget N (default 16 if 0).
func New[K any, V any](capacity uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	o := options{shapeConst: defaultShapeConst}
	for _, opt := range opts {
		opt(&o)
	}
	n := int(capacity)
	if n == 0 {
		n = defaultCapacity
	}
	t := &Table[K, V]{hashFn: hash, equal: equal, c: o.shapeConst, seed: o.seed}
	t.allocate(n)
	return t
}

func (t *Table[K, V]) hash(key K) uint64 {
	return t.hashFn(key) ^ t.seed
}

func derivedShape(n int, c float64) (bucketCapacity, numBuckets int) {
	ln := math.Log(float64(n))
	if ln <= 0 {
		ln = 1
	}
	bucketCapacity = int(math.Floor(ln*ln*ln + c*ln*ln))
	if bucketCapacity < 1 {
		bucketCapacity = 1
	}
	numBuckets = int(float64(n) / (ln * ln * ln))
	if numBuckets < 1 {
		numBuckets = 1
	}
	return
}

func (t *Table[K, V]) allocate(n int) {
	t.n = n
	t.bucketCapacity, t.numBuckets = derivedShape(n, t.c)
	t.buckets = make([]bucket[K, V], t.numBuckets)
	for i := range t.buckets {
		salt := t.nextSalt
		t.nextSalt++
		t.buckets[i] = newBucket[K, V](t.bucketCapacity, salt)
	}
}

func (t *Table[K, V]) bucketIndex(hash uint64) int {
	return int(hash % uint64(t.numBuckets))
}

func (t *Table[K, V]) fingerprint(b *bucket[K, V], hash uint64) uint32 {
	return uint32(mix.Combine(hash, b.salt))
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns the capacity budget N.
func (t *Table[K, V]) Capacity() int { return t.n }

// LoadFactor returns live entries divided by N.
func (t *Table[K, V]) LoadFactor() float64 { return float64(t.length) / float64(t.n) }

// Insert stores value under key. When the bucket's fingerprint table fills
// up the table grows (doubling N) rather than failing the insert; see
// DESIGN.md for why growth was chosen over a hard bucket-overflow error.
func (t *Table[K, V]) Insert(key K, value V) error {
	if t.insertOnce(key, value) {
		return nil
	}
	all := append(t.collect(), entry[K, V]{key: key, value: value})
	for {
		t.allocate(t.n * 2)
		t.length = 0
		if t.reinsertAll(all) {
			return nil
		}
	}
}

func (t *Table[K, V]) insertOnce(key K, value V) bool {
	if float64(t.length+1)/float64(t.n) >= growthThreshold {
		return false
	}

	hash := t.hash(key)
	b := &t.buckets[t.bucketIndex(hash)]

	for {
		fp := t.fingerprint(b, hash)
		if pos, ok := b.fingerprint[fp]; ok {
			if t.equal(b.entries[pos].key, key) {
				b.entries[pos].value = value
				return true
			}
			if !t.rebuildFingerprints(b) {
				return false
			}
			continue
		}
		if len(b.entries) >= t.bucketCapacity {
			return false
		}
		pos := len(b.entries)
		b.entries = append(b.entries, entry[K, V]{key: key, value: value})
		b.fingerprint[fp] = pos
		t.length++
		return true
	}
}

// rebuildFingerprints picks a fresh salt and recomputes every live entry's
// fingerprint in the bucket, retrying on a fresh collision, bounded by
// maxSaltAttempts.
func (t *Table[K, V]) rebuildFingerprints(b *bucket[K, V]) bool {
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), maxSaltAttempts)
	err := backoff.Retry(func() error {
		salt := t.nextSalt
		t.nextSalt++
		fps := make(map[uint32]int, len(b.entries))
		for i, e := range b.entries {
			fp := uint32(mix.Combine(t.hash(e.key), salt))
			if _, collide := fps[fp]; collide {
				return fmt.Errorf("hashkit: fingerprint collision rebuilding bucket")
			}
			fps[fp] = i
		}
		b.salt = salt
		b.fingerprint = fps
		return nil
	}, bo)
	return err == nil
}

func (t *Table[K, V]) collect() []entry[K, V] {
	out := make([]entry[K, V], 0, t.length)
	for _, b := range t.buckets {
		out = append(out, b.entries...)
	}
	return out
}

func (t *Table[K, V]) reinsertAll(all []entry[K, V]) bool {
	for _, e := range all {
		if !t.insertOnce(e.key, e.value) {
			return false
		}
	}
	return true
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	hash := t.hash(key)
	b := &t.buckets[t.bucketIndex(hash)]
	fp := t.fingerprint(b, hash)
	if pos, ok := b.fingerprint[fp]; ok && t.equal(b.entries[pos].key, key) {
		return b.entries[pos].value, true
	}
	var zero V
	return zero, false
}

// Update replaces the value for an already-live key.
func (t *Table[K, V]) Update(key K, value V) bool {
	hash := t.hash(key)
	b := &t.buckets[t.bucketIndex(hash)]
	fp := t.fingerprint(b, hash)
	if pos, ok := b.fingerprint[fp]; ok && t.equal(b.entries[pos].key, key) {
		b.entries[pos].value = value
		return true
	}
	return false
}

// Remove deletes key if live. The vacated slot is filled by the bucket's
// last occupied slot to preserve left-justification, and the fingerprint
// map is updated to point the moved entry at its new position.
func (t *Table[K, V]) Remove(key K) bool {
	hash := t.hash(key)
	b := &t.buckets[t.bucketIndex(hash)]
	fp := t.fingerprint(b, hash)
	pos, ok := b.fingerprint[fp]
	if !ok || !t.equal(b.entries[pos].key, key) {
		return false
	}
	delete(b.fingerprint, fp)
	last := len(b.entries) - 1
	if pos != last {
		moved := b.entries[last]
		b.entries[pos] = moved
		movedFP := t.fingerprint(b, t.hash(moved.key))
		b.fingerprint[movedFP] = pos
	}
	b.entries = b.entries[:last]
	t.length--
	return true
}

// Clear removes all entries, recomputing bucket shape for the current N.
func (t *Table[K, V]) Clear() {
	t.allocate(t.n)
	t.length = 0
}

var _ mapping.Table[int, int] = (*Table[int, int])(nil)
