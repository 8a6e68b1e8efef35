// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package mix provides the hash-mixing primitives shared by every table
// variant: a default hash for the common Go key kinds (built on
// cespare/xxhash/v2, the pack's fast non-cryptographic hash), and the
// integer finalizer each multi-probe variant uses to turn (key-hash, level,
// attempt) tuples into slot indices.
package mix

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// String hashes a string key. It can be passed as the hash argument of a
// table constructor; constructors have no default hash.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Bytes hashes a byte-slice key.
func Bytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Uint64 mixes a 64-bit key. Plain integer keys hash poorly with a
// byte-oriented hash unless first serialized, so this runs xxhash over the
// key's little-endian encoding.
func Uint64(v uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return xxhash.Sum64(buf[:])
}

// SplitMix64 is the integer finalizer used by the funnel and elastic
// variants to derive independent-looking probe positions from a single key
// hash plus a small (level, attempt) tuple, without re-hashing the key
// itself. It's the same mixing step used by other_examples'
// KarpelesLab-elastichash reference implementation.
func SplitMix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x = x ^ (x >> 31)
	return x
}

// Combine folds a secondary value (a level index, a probe attempt, a
// per-bucket salt) into a key hash before finalizing with SplitMix64. Used
// wherever a variant needs many independent-looking hash functions derived
// from one user-supplied hash.
func Combine(keyHash uint64, salt uint64) uint64 {
	return SplitMix64(keyHash ^ (salt * 0x9E3779B97F4A7C15))
}
