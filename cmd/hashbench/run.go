// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristanetworks/hashkit/chaining"
	"github.com/aristanetworks/hashkit/cuckoo"
	"github.com/aristanetworks/hashkit/elastic"
	"github.com/aristanetworks/hashkit/funnel"
	"github.com/aristanetworks/hashkit/iceberg"
	"github.com/aristanetworks/hashkit/internal/mix"
	"github.com/aristanetworks/hashkit/ipbt"
	"github.com/aristanetworks/hashkit/lp"
	"github.com/aristanetworks/hashkit/mapping"
	"github.com/aristanetworks/hashkit/perfect"
)

func hashInt(k int) uint64   { return mix.Uint64(uint64(k)) }
func equalInt(a, b int) bool { return a == b }

// knownVariants lists the accepted --hashtable values in newTable's error.
var knownVariants = []string{"lp", "chaining", "cuckoo", "perfect", "iceberg", "funnel", "elastic", "ipbt"}

func newTable(variant string, capacity uint) (mapping.Table[int, int], error) {
	switch variant {
	case "lp":
		return lp.New[int, int](capacity, hashInt, equalInt), nil
	case "chaining":
		return chaining.New[int, int](capacity, hashInt, equalInt), nil
	case "cuckoo":
		return cuckoo.New[int, int](capacity, hashInt, equalInt), nil
	case "perfect":
		return perfect.New[int, int](capacity, hashInt, equalInt), nil
	case "iceberg":
		return iceberg.New[int, int](capacity, hashInt, equalInt), nil
	case "funnel":
		return funnel.New[int, int](capacity, hashInt, equalInt), nil
	case "elastic":
		return elastic.New[int, int](capacity, hashInt, equalInt), nil
	case "ipbt":
		return ipbt.New[int, int](capacity, hashInt, equalInt), nil
	default:
		return nil, fmt.Errorf("unknown hashtable variant %q (want one of %v)", variant, knownVariants)
	}
}

// runResult is what gets written to the timing and space report files.
type runResult struct {
	variant       string
	dataset       datasetType
	numKeys       int
	load          float64
	insertElapsed time.Duration
	lookupElapsed time.Duration
	finalSize     int
	finalCapacity int
	growthEvents  int
}

// runBenchmark builds a table sized for the requested load factor, inserts
// the dataset, times a full lookup pass, and reports final size/capacity.
// When parallelSetup is true, dataset generation and table construction
// happen concurrently via an errgroup.
func runBenchmark(variant string, typ datasetType, numKeys int, load float64, seed uint64, parallelSetup bool) (*runResult, error) {
	if load <= 0 || load > 1 {
		return nil, fmt.Errorf("--load must be in (0, 1], got %v", load)
	}
	capacity := uint(math.Ceil(float64(numKeys) / load))

	var keys []int
	var table mapping.Table[int, int]

	if parallelSetup {
		g := new(errgroup.Group)
		g.Go(func() error {
			keys = generateKeys(typ, numKeys, seed)
			return nil
		})
		g.Go(func() error {
			t, err := newTable(variant, capacity)
			table = t
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		keys = generateKeys(typ, numKeys, seed)
		t, err := newTable(variant, capacity)
		if err != nil {
			return nil, err
		}
		table = t
	}

	initialCapacity := table.Capacity()

	start := time.Now()
	for i, k := range keys {
		if err := table.Insert(k, i); err != nil {
			return nil, fmt.Errorf("insert(%d): %w", k, err)
		}
	}
	insertElapsed := time.Since(start)

	start = time.Now()
	for _, k := range keys {
		table.Lookup(k)
	}
	lookupElapsed := time.Since(start)

	finalCapacity := table.Capacity()
	growth := 0
	if finalCapacity > initialCapacity && initialCapacity > 0 {
		growth = int(math.Round(math.Log2(float64(finalCapacity) / float64(initialCapacity))))
	}

	dataset := string(typ)
	tableSize.WithLabelValues(variant, dataset).Set(float64(table.Size()))
	tableCapacity.WithLabelValues(variant, dataset).Set(float64(finalCapacity))
	tableLoadFactor.WithLabelValues(variant, dataset).Set(table.LoadFactor())
	growthEvents.WithLabelValues(variant, dataset).Add(float64(growth))

	return &runResult{
		variant:       variant,
		dataset:       typ,
		numKeys:       numKeys,
		load:          load,
		insertElapsed: insertElapsed,
		lookupElapsed: lookupElapsed,
		finalSize:     table.Size(),
		finalCapacity: finalCapacity,
		growthEvents:  growth,
	}, nil
}
