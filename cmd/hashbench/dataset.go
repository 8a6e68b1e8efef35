// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// datasetType selects how keys are drawn for a benchmark run.
type datasetType string

const (
	datasetUniform    datasetType = "uniform"
	datasetZipfian    datasetType = "zipfian"
	datasetSequential datasetType = "sequential"
)

func parseDatasetType(s string) (datasetType, error) {
	switch datasetType(s) {
	case datasetUniform, datasetZipfian, datasetSequential:
		return datasetType(s), nil
	default:
		return "", fmt.Errorf("unknown dataset type %q (want uniform, zipfian, or sequential)", s)
	}
}

// generateKeys deterministically builds numKeys int keys for the given
// dataset shape and seed.
func generateKeys(typ datasetType, numKeys int, seed uint64) []int {
	keys := make([]int, numKeys)
	switch typ {
	case datasetSequential:
		for i := range keys {
			keys[i] = i
		}
	case datasetUniform:
		rng := rand.New(rand.NewSource(seed))
		for i := range keys {
			keys[i] = rng.Intn(numKeys * 4)
		}
	case datasetZipfian:
		rng := rand.New(rand.NewSource(seed))
		// s > 1 concentrates mass on the low end of the domain, giving a
		// small set of hot keys that collide heavily, which is the
		// stress case zipfian datasets are meant to exercise.
		z := rand.NewZipf(rng, 1.5, 1, uint64(numKeys*4-1))
		for i := range keys {
			keys[i] = int(z.Uint64())
		}
	}
	return keys
}
