// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package mapping

import "errors"

// Sentinel errors returned by Table.Insert. Wrap with fmt.Errorf("%w: ...")
// at the call site to attach variant-specific context; callers should match
// against these with errors.Is.
var (
	// ErrBucketOverflow reports a full bucket in a table that does not
	// grow. No variant in this module returns it: IPBT grows the table
	// when a bucket is full.
	ErrBucketOverflow = errors.New("hashkit: bucket overflow")

	// ErrRebuildExhausted is returned by Perfect when a bucket rebuild
	// fails to find a collision-free configuration within its bounded
	// retry budget. IPBT does not return it: when its fingerprint-salt
	// rebuild runs out of attempts, the table grows instead.
	ErrRebuildExhausted = errors.New("hashkit: rebuild retries exhausted")

	// ErrDisplacementExhausted is returned by Cuckoo when a displacement
	// chain and the subsequent grow-and-retry both fail to place an
	// entry, which can only happen if growth itself fails (e.g. the
	// caller's hash functions are degenerate).
	ErrDisplacementExhausted = errors.New("hashkit: displacement chain exhausted after growth")
)
