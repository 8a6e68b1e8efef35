// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package funnel implements funnel hashing: a geometrically shrinking
// sequence of primary levels, each viewed as fixed-width buckets scanned
// greedily with no reordering, followed by a two-section overflow level
// that absorbs whatever the primary levels can't place. Once placed, an
// entry never moves except across a whole-table growth.
package funnel

import (
	"math"

	"github.com/aristanetworks/hashkit/internal/mix"
	"github.com/aristanetworks/hashkit/mapping"
)

const (
	defaultCapacity = 1024
	defaultDelta    = 0.1

	overflowSaltXor = 0x9E3779B97F4A7C15
)

type state uint8

const (
	empty state = iota
	occupied
	deleted
)

type cell[K any, V any] struct {
	key   K
	value V
	state state
}

// Table is a funnel-hashing map.
type Table[K any, V any] struct {
	levels   [][]cell[K, V] // primary levels, each a flat array partitioned into beta-wide buckets
	overflow []cell[K, V]

	n     int // capacity budget
	delta float64
	alpha int
	beta  int

	length int

	hashFn func(K) uint64
	equal  func(K, K) bool
	seed   uint64
}

// Option configures a Table at construction time.
type Option func(*options)

type options struct {
	delta float64
	seed  uint64
}

// WithDelta sets the free-fraction parameter δ ∈ (0,1); default 0.1.
func WithDelta(delta float64) Option {
	return func(o *options) { o.delta = delta }
}

// WithSeed fixes the table's internal hash-salting seed, making level and
// overflow probe sequences reproducible across runs given the same seed,
// hash, and equal functions.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with capacity budget N (default 1024 if 0) and the
// given options. It panics if δ is supplied outside (0,1).
func New[K any, V any](capacity uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	o := options{delta: defaultDelta}
	for _, opt := range opts {
		opt(&o)
	}
	if o.delta <= 0 || o.delta >= 1 {
		panic("funnel: delta must be in (0, 1)")
	}
	n := int(capacity)
	if n == 0 {
		n = defaultCapacity
	}
	t := &Table[K, V]{hashFn: hash, equal: equal, delta: o.delta, seed: o.seed}
	t.allocate(n)
	return t
}

func (t *Table[K, V]) hash(key K) uint64 {
	return t.hashFn(key) ^ t.seed
}

func ceilLog2(x float64) int {
	if x <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(x)))
}

func ceilDiv2(n int) int { return (n + 1) / 2 }

func roundDownToMultiple(x, m int) int {
	if m <= 0 {
		return x
	}
	r := (x / m) * m
	if r < m {
		r = m
	}
	return r
}

func (t *Table[K, V]) allocate(n int) {
	t.n = n
	t.alpha = int(math.Ceil(4*math.Log2(1/t.delta) + 10))
	t.beta = ceilLog2(1 / t.delta)
	if t.beta < 1 {
		t.beta = 1
	}

	overflowMin := ceilDiv2(int(math.Ceil(t.delta * float64(n))))
	primaryBudget := n - overflowMin

	t.levels = make([][]cell[K, V], t.alpha)
	sum := 0
	for i := 0; i < t.alpha; i++ {
		raw := float64(primaryBudget) * 0.25 * math.Pow(0.75, float64(i))
		size := roundDownToMultiple(int(raw), t.beta)
		t.levels[i] = make([]cell[K, V], size)
		sum += size
	}

	overflowSize := n - sum
	if overflowSize < overflowMin {
		overflowSize = overflowMin
	}
	t.overflow = make([]cell[K, V], overflowSize)
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns the capacity budget N.
func (t *Table[K, V]) Capacity() int { return t.n }

// LoadFactor returns live entries divided by N.
func (t *Table[K, V]) LoadFactor() float64 { return float64(t.length) / float64(t.n) }

func (t *Table[K, V]) levelBucket(level, numBuckets int, hash uint64) int {
	if numBuckets <= 0 {
		return 0
	}
	return int(mix.Combine(hash, uint64(level)) % uint64(numBuckets))
}

// scanBucket scans a beta-wide (or arbitrary-width) slice in physical
// order, stopping at the first empty cell. It returns the index of a
// matching-key cell and the index of the first empty-or-deleted cell
// suitable for insertion; either is -1 when there is none.
func scanBucket[K any, V any](cells []cell[K, V], key K, equal func(K, K) bool) (matchIdx, freeIdx int) {
	matchIdx, freeIdx = -1, -1
	for i := range cells {
		switch cells[i].state {
		case empty:
			if freeIdx < 0 {
				freeIdx = i
			}
			return matchIdx, freeIdx
		case deleted:
			if freeIdx < 0 {
				freeIdx = i
			}
		case occupied:
			if equal(cells[i].key, key) {
				return i, freeIdx
			}
		}
	}
	return matchIdx, freeIdx
}

// Insert stores value under key, trying each primary level in turn and
// falling back to the two-section overflow level, growing the table if
// every placement strategy is exhausted.
func (t *Table[K, V]) Insert(key K, value V) error {
	if t.insertOnce(key, value) {
		return nil
	}
	all := append(t.collect(), entryPair[K, V]{key: key, value: value})
	for {
		t.allocate(t.n * 2)
		t.length = 0
		if t.reinsertAll(all) {
			return nil
		}
	}
}

func (t *Table[K, V]) insertOnce(key K, value V) bool {
	hash := t.hash(key)
	// A key already live anywhere — including a level past the first one
	// with room, or the overflow — must be overwritten in place rather
	// than re-placed, or it ends up with two live copies.
	if t.updateWithHash(hash, key, value) {
		return true
	}
	for i, level := range t.levels {
		if len(level) == 0 {
			continue
		}
		numBuckets := len(level) / t.beta
		b := t.levelBucket(i, numBuckets, hash)
		bucket := level[b*t.beta : b*t.beta+t.beta]
		_, free := scanBucket(bucket, key, t.equal)
		if free >= 0 {
			bucket[free] = cell[K, V]{key: key, value: value, state: occupied}
			t.length++
			return true
		}
	}
	return t.insertOverflow(hash, key, value)
}

func (t *Table[K, V]) overflowShape() (halfFirst, halfSecond, bucketSize, numBuckets, probeBudget int) {
	m := len(t.overflow)
	halfFirst = m / 2
	halfSecond = m - halfFirst
	probeBudget = ceilLog2(math.Log2(float64(t.n) + 2))
	if probeBudget < 1 {
		probeBudget = 1
	}
	bucketSize = 2 * probeBudget
	if bucketSize > halfSecond {
		bucketSize = halfSecond
	}
	if bucketSize < 1 {
		bucketSize = 1
	}
	numBuckets = halfSecond / bucketSize
	if numBuckets < 1 {
		numBuckets = 1
	}
	return
}

func (t *Table[K, V]) insertOverflow(hash uint64, key K, value V) bool {
	halfFirst, _, bucketSize, numBuckets, probeBudget := t.overflowShape()

	if halfFirst > 0 {
		for p := 0; p < probeBudget; p++ {
			pos := int(mix.Combine(hash, uint64(p)) % uint64(halfFirst))
			c := &t.overflow[pos]
			if c.state == occupied && t.equal(c.key, key) {
				c.value = value
				return true
			}
			if c.state != occupied {
				*c = cell[K, V]{key: key, value: value, state: occupied}
				t.length++
				return true
			}
		}
	}

	b1 := int(mix.Combine(hash, 0) % uint64(numBuckets))
	b2 := int(mix.Combine(hash^overflowSaltXor, 0) % uint64(numBuckets))
	start := halfFirst
	bucket1 := t.overflow[start+b1*bucketSize : start+b1*bucketSize+bucketSize]
	bucket2 := t.overflow[start+b2*bucketSize : start+b2*bucketSize+bucketSize]

	for i := 0; i < bucketSize; i++ {
		for _, bucket := range [][]cell[K, V]{bucket1, bucket2} {
			c := &bucket[i]
			if c.state == occupied && t.equal(c.key, key) {
				c.value = value
				return true
			}
		}
	}
	for i := 0; i < bucketSize; i++ {
		for _, bucket := range [][]cell[K, V]{bucket1, bucket2} {
			c := &bucket[i]
			if c.state != occupied {
				*c = cell[K, V]{key: key, value: value, state: occupied}
				t.length++
				return true
			}
		}
	}
	return false
}

func (t *Table[K, V]) reinsertAll(all []entryPair[K, V]) bool {
	for _, p := range all {
		if !t.insertOnce(p.key, p.value) {
			return false
		}
	}
	return true
}

type entryPair[K any, V any] struct {
	key   K
	value V
}

func (t *Table[K, V]) collect() []entryPair[K, V] {
	out := make([]entryPair[K, V], 0, t.length)
	for _, level := range t.levels {
		for _, c := range level {
			if c.state == occupied {
				out = append(out, entryPair[K, V]{key: c.key, value: c.value})
			}
		}
	}
	for _, c := range t.overflow {
		if c.state == occupied {
			out = append(out, entryPair[K, V]{key: c.key, value: c.value})
		}
	}
	return out
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	hash := t.hash(key)
	for i, level := range t.levels {
		if len(level) == 0 {
			continue
		}
		numBuckets := len(level) / t.beta
		b := t.levelBucket(i, numBuckets, hash)
		bucket := level[b*t.beta : b*t.beta+t.beta]
		for _, c := range bucket {
			if c.state == empty {
				break
			}
			if c.state == occupied && t.equal(c.key, key) {
				return c.value, true
			}
		}
	}
	if v, ok := t.lookupOverflow(hash, key); ok {
		return v, true
	}
	var zero V
	return zero, false
}

func (t *Table[K, V]) lookupOverflow(hash uint64, key K) (V, bool) {
	halfFirst, _, bucketSize, numBuckets, probeBudget := t.overflowShape()
	if halfFirst > 0 {
		for p := 0; p < probeBudget; p++ {
			pos := int(mix.Combine(hash, uint64(p)) % uint64(halfFirst))
			c := &t.overflow[pos]
			if c.state == empty {
				break
			}
			if c.state == occupied && t.equal(c.key, key) {
				return c.value, true
			}
		}
	}
	b1 := int(mix.Combine(hash, 0) % uint64(numBuckets))
	b2 := int(mix.Combine(hash^overflowSaltXor, 0) % uint64(numBuckets))
	start := halfFirst
	for _, b := range []int{b1, b2} {
		bucket := t.overflow[start+b*bucketSize : start+b*bucketSize+bucketSize]
		for _, c := range bucket {
			if c.state == occupied && t.equal(c.key, key) {
				return c.value, true
			}
		}
	}
	var zero V
	return zero, false
}

// Update replaces the value for an already-live key.
func (t *Table[K, V]) Update(key K, value V) bool {
	return t.updateWithHash(t.hash(key), key, value)
}

// updateWithHash is Update's lookup-and-overwrite path, shared with
// insertOnce so Insert always checks every level and the overflow for an
// existing copy of key before placing a new one.
func (t *Table[K, V]) updateWithHash(hash uint64, key K, value V) bool {
	for i, level := range t.levels {
		if len(level) == 0 {
			continue
		}
		numBuckets := len(level) / t.beta
		b := t.levelBucket(i, numBuckets, hash)
		bucket := level[b*t.beta : b*t.beta+t.beta]
		for j := range bucket {
			if bucket[j].state == empty {
				break
			}
			if bucket[j].state == occupied && t.equal(bucket[j].key, key) {
				bucket[j].value = value
				return true
			}
		}
	}
	return t.updateOverflow(hash, key, value)
}

func (t *Table[K, V]) updateOverflow(hash uint64, key K, value V) bool {
	halfFirst, _, bucketSize, numBuckets, probeBudget := t.overflowShape()
	if halfFirst > 0 {
		for p := 0; p < probeBudget; p++ {
			pos := int(mix.Combine(hash, uint64(p)) % uint64(halfFirst))
			c := &t.overflow[pos]
			if c.state == empty {
				break
			}
			if c.state == occupied && t.equal(c.key, key) {
				c.value = value
				return true
			}
		}
	}
	b1 := int(mix.Combine(hash, 0) % uint64(numBuckets))
	b2 := int(mix.Combine(hash^overflowSaltXor, 0) % uint64(numBuckets))
	start := halfFirst
	for _, b := range []int{b1, b2} {
		bucket := t.overflow[start+b*bucketSize : start+b*bucketSize+bucketSize]
		for i := range bucket {
			if bucket[i].state == occupied && t.equal(bucket[i].key, key) {
				bucket[i].value = value
				return true
			}
		}
	}
	return false
}

// Remove deletes key if live, leaving a tombstone in its place.
func (t *Table[K, V]) Remove(key K) bool {
	hash := t.hash(key)
	for i, level := range t.levels {
		if len(level) == 0 {
			continue
		}
		numBuckets := len(level) / t.beta
		b := t.levelBucket(i, numBuckets, hash)
		bucket := level[b*t.beta : b*t.beta+t.beta]
		for j := range bucket {
			if bucket[j].state == empty {
				break
			}
			if bucket[j].state == occupied && t.equal(bucket[j].key, key) {
				bucket[j] = cell[K, V]{state: deleted}
				t.length--
				return true
			}
		}
	}
	return t.removeOverflow(hash, key)
}

func (t *Table[K, V]) removeOverflow(hash uint64, key K) bool {
	halfFirst, _, bucketSize, numBuckets, probeBudget := t.overflowShape()
	if halfFirst > 0 {
		for p := 0; p < probeBudget; p++ {
			pos := int(mix.Combine(hash, uint64(p)) % uint64(halfFirst))
			c := &t.overflow[pos]
			if c.state == empty {
				break
			}
			if c.state == occupied && t.equal(c.key, key) {
				*c = cell[K, V]{state: deleted}
				t.length--
				return true
			}
		}
	}
	b1 := int(mix.Combine(hash, 0) % uint64(numBuckets))
	b2 := int(mix.Combine(hash^overflowSaltXor, 0) % uint64(numBuckets))
	start := halfFirst
	for _, b := range []int{b1, b2} {
		bucket := t.overflow[start+b*bucketSize : start+b*bucketSize+bucketSize]
		for i := range bucket {
			if bucket[i].state == occupied && t.equal(bucket[i].key, key) {
				bucket[i] = cell[K, V]{state: deleted}
				t.length--
				return true
			}
		}
	}
	return false
}

// Clear removes all entries, recomputing level sizes for the current N.
func (t *Table[K, V]) Clear() {
	t.allocate(t.n)
	t.length = 0
}

var _ mapping.Table[int, int] = (*Table[int, int])(nil)
