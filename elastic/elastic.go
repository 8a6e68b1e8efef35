// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package elastic implements elastic hashing: a sequence of levels whose
// sizes halve geometrically, with a probe budget at each level derived
// from how full that level currently is. Early levels get generous probe
// budgets while nearly-full levels route new keys onward quickly, which is
// what keeps worst-case probe counts low even as the table fills up.
package elastic

import (
	"math"

	"github.com/aristanetworks/hashkit/internal/mix"
	"github.com/aristanetworks/hashkit/mapping"
)

const (
	defaultCapacity = 16
	defaultDelta    = 0.1
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

type level[K any, V any] struct {
	cells    []cell[K, V]
	occupied int
}

// Table is an elastic-hashing map.
type Table[K any, V any] struct {
	levels []level[K, V]
	n      int
	delta  float64
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

// WithDelta sets the free-fraction parameter δ; default 0.1.
func WithDelta(delta float64) Option {
	return func(o *options) { o.delta = delta }
}

// WithSeed fixes the table's internal hash-salting seed, making per-level
// probe sequences reproducible across runs given the same seed, hash, and
// equal functions.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// New creates a table with capacity budget N (default 16 if 0).
func New[K any, V any](capacity uint, hash func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	o := options{delta: defaultDelta}
	for _, opt := range opts {
		opt(&o)
	}
	if o.delta <= 0 || o.delta >= 1 {
		panic("elastic: delta must be in (0, 1)")
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

func (t *Table[K, V]) allocate(n int) {
	t.n = n
	t.levels = nil
	remaining := n
	for remaining > 0 {
		size := (remaining + 1) / 2
		if size < 1 {
			size = 1
		}
		t.levels = append(t.levels, level[K, V]{cells: make([]cell[K, V], size)})
		remaining -= size
	}
}

// Size returns the number of live entries.
func (t *Table[K, V]) Size() int { return t.length }

// Capacity returns the capacity budget N.
func (t *Table[K, V]) Capacity() int { return t.n }

// LoadFactor returns live entries divided by N.
func (t *Table[K, V]) LoadFactor() float64 { return float64(t.length) / float64(t.n) }

func (t *Table[K, V]) epsilon(i int) float64 {
	lvl := &t.levels[i]
	return float64(len(lvl.cells)-lvl.occupied) / float64(len(lvl.cells))
}

func (t *Table[K, V]) probeBudget(i int) int {
	eps := t.epsilon(i)
	if eps <= 0 {
		return len(t.levels[i].cells)
	}
	a := math.Log2(1 / eps)
	b := math.Log2(1 / t.delta)
	budget := math.Ceil(math.Min(a, b))
	if budget < 1 {
		budget = 1
	}
	return int(budget)
}

func (t *Table[K, V]) fullTarget(i int) int {
	size := len(t.levels[i].cells)
	return size - int(math.Floor(t.delta*float64(size)/2))
}

func (t *Table[K, V]) partialTarget(i int) int {
	return int(math.Ceil(0.75 * float64(len(t.levels[i].cells))))
}

// currentLevel is the smallest i such that level i is below its full
// target or level i+1 is below its partial target.
func (t *Table[K, V]) currentLevel() int {
	last := len(t.levels) - 1
	for i := 0; i < last; i++ {
		if t.levels[i].occupied < t.fullTarget(i) || t.levels[i+1].occupied < t.partialTarget(i+1) {
			return i
		}
	}
	return last
}

func probePos(hash uint64, size int, attempt int) int {
	if size <= 0 {
		return 0
	}
	return int(mix.Combine(hash, uint64(attempt)) % uint64(size))
}

// scanInsert scans level i for a matching key (overwrite) or an
// empty-or-deleted slot, trying up to budget positions. budget<0 tries
// len(cells) hashed positions; those positions can repeat, so a free slot
// in the level is not guaranteed to be found.
func (t *Table[K, V]) scanInsert(i int, hash uint64, key K, value V, budget int) bool {
	lvl := &t.levels[i]
	limit := len(lvl.cells)
	if budget >= 0 && budget < limit {
		limit = budget
	}
	for a := 0; a < limit; a++ {
		pos := probePos(hash, len(lvl.cells), a)
		c := &lvl.cells[pos]
		if c.state == occupied && t.equal(c.key, key) {
			c.value = value
			return true
		}
		if c.state != occupied {
			*c = cell[K, V]{key: key, value: value, state: occupied}
			lvl.occupied++
			t.length++
			return true
		}
	}
	return false
}

// Insert stores value under key following the level-ℓ placement rule,
// growing the table if every strategy at the chosen level is exhausted.
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
	// A key already live at some level other than the one the placement
	// rule would pick for a fresh insert must be overwritten there, not
	// re-placed, or it ends up with two live copies.
	if t.updateWithHash(hash, key, value) {
		return true
	}
	last := len(t.levels) - 1
	ell := t.currentLevel()

	if ell == 0 {
		if t.scanInsert(0, hash, key, value, t.probeBudget(0)) {
			return true
		}
		return t.scanInsert(0, hash, key, value, -1)
	}

	if ell >= last {
		return t.scanInsert(ell, hash, key, value, -1)
	}

	epsL := t.epsilon(ell)
	epsNext := t.epsilon(ell + 1)
	switch {
	case epsL > t.delta/2 && epsNext > 0.25:
		if t.scanInsert(ell, hash, key, value, t.probeBudget(ell)) {
			return true
		}
		return t.scanInsert(ell+1, hash, key, value, -1)
	case epsL <= t.delta/2:
		return t.scanInsert(ell+1, hash, key, value, -1)
	default:
		return t.scanInsert(ell, hash, key, value, -1)
	}
}

type entryPair[K any, V any] struct {
	key   K
	value V
}

func (t *Table[K, V]) collect() []entryPair[K, V] {
	out := make([]entryPair[K, V], 0, t.length)
	for _, lvl := range t.levels {
		for _, c := range lvl.cells {
			if c.state == occupied {
				out = append(out, entryPair[K, V]{key: c.key, value: c.value})
			}
		}
	}
	return out
}

func (t *Table[K, V]) reinsertAll(all []entryPair[K, V]) bool {
	for _, p := range all {
		if !t.insertOnce(p.key, p.value) {
			return false
		}
	}
	return true
}

// scanLevel scans level i for key, stopping at the first empty cell. When
// budgeted it tries at most the level's probe budget, otherwise len(cells)
// hashed positions.
func (t *Table[K, V]) scanLevel(i int, hash uint64, key K, budgeted bool) (int, bool) {
	lvl := &t.levels[i]
	limit := len(lvl.cells)
	if budgeted {
		if b := t.probeBudget(i); b < limit {
			limit = b
		}
	}
	for a := 0; a < limit; a++ {
		pos := probePos(hash, len(lvl.cells), a)
		c := &lvl.cells[pos]
		if c.state == empty {
			return 0, false
		}
		if c.state == occupied && t.equal(c.key, key) {
			return pos, true
		}
	}
	return 0, false
}

// Lookup returns the value stored for key, if any.
func (t *Table[K, V]) Lookup(key K) (V, bool) {
	hash := t.hash(key)
	last := len(t.levels) - 1
	for i := range t.levels {
		if pos, ok := t.scanLevel(i, hash, key, i != last); ok {
			return t.levels[i].cells[pos].value, true
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
// insertOnce so Insert always checks every level before placing a new
// entry.
func (t *Table[K, V]) updateWithHash(hash uint64, key K, value V) bool {
	last := len(t.levels) - 1
	for i := range t.levels {
		if pos, ok := t.scanLevel(i, hash, key, i != last); ok {
			t.levels[i].cells[pos].value = value
			return true
		}
	}
	return false
}

// Remove deletes key if live, leaving a tombstone in its place.
func (t *Table[K, V]) Remove(key K) bool {
	hash := t.hash(key)
	last := len(t.levels) - 1
	for i := range t.levels {
		if pos, ok := t.scanLevel(i, hash, key, i != last); ok {
			t.levels[i].cells[pos] = cell[K, V]{state: deleted}
			t.levels[i].occupied--
			t.length--
			return true
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
