// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// The hashbench command drives timing and memory-footprint benchmarks
// across every table variant in this module, writing a report per run
// under ./output and optionally serving live Prometheus gauges over HTTP.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristanetworks/glog"

	hashkitglog "github.com/aristanetworks/hashkit/glog"
	"github.com/aristanetworks/hashkit/logger"
	"github.com/aristanetworks/hashkit/monitor"
)

func main() {
	numKeys := flag.Int("numKeys", 10000, "number of keys to insert")
	load := flag.Float64("load", 0.7, "target load factor to size the table for")
	typFlag := flag.String("type", "uniform", "dataset shape: uniform, zipfian, or sequential")
	hashtable := flag.String("hashtable", "", "table variant to benchmark (required unless --config is given)")
	seed := flag.Uint64("seed", 42, "seed for dataset generation and deterministic table construction")
	parallelSetup := flag.Bool("parallel-setup", false, "generate the dataset and construct the table concurrently")
	configFlag := flag.String("config", "", "YAML file describing a batch of runs; overrides the single-run flags")
	listenAddr := flag.String("listen", "", "if set, serve /metrics on this address while running")
	outputDir := flag.String("output", "./output", "directory to write timing/space reports into")

	flag.Parse()

	if *listenAddr != "" {
		srv := monitor.NewMonitorServer(*listenAddr)
		srv.Handle("/metrics", promhttp.Handler())
		go srv.Run()
	}

	// log is typed against logger.Logger, not *glog.Glog, so the driver's
	// business logic never depends on which logging backend is plugged in.
	var log logger.Logger = &hashkitglog.Glog{}

	var runs []runConfig
	if *configFlag != "" {
		cfg, err := loadBatchConfig(*configFlag)
		if err != nil {
			glog.Errorf("hashbench: %v", err)
			os.Exit(1)
		}
		runs = cfg.Runs
	} else {
		if *hashtable == "" {
			glog.Error("hashbench: --hashtable is required unless --config is given")
			os.Exit(1)
		}
		runs = []runConfig{{
			Hashtable: *hashtable,
			Type:      *typFlag,
			NumKeys:   *numKeys,
			Load:      *load,
		}}
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		glog.Errorf("hashbench: creating output dir: %v", err)
		os.Exit(1)
	}

	exitCode := 0
	for _, r := range runs {
		if err := runOne(log, *outputDir, r, *seed, *parallelSetup); err != nil {
			glog.Errorf("hashbench: run %+v failed: %v", r, err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func runOne(log logger.Logger, outputDir string, r runConfig, seed uint64, parallelSetup bool) error {
	typ, err := parseDatasetType(r.Type)
	if err != nil {
		return err
	}
	log.Infof("running %s variant=%s type=%s numKeys=%d load=%v", "hashbench", r.Hashtable, typ, r.NumKeys, r.Load)

	result, err := runBenchmark(r.Hashtable, typ, r.NumKeys, r.Load, seed, parallelSetup)
	if err != nil {
		return err
	}

	if err := writeReport(outputDir, "time", result, formatTimeReport(result)); err != nil {
		return err
	}
	if err := writeReport(outputDir, "space", result, formatSpaceReport(result)); err != nil {
		return err
	}
	log.Infof("finished variant=%s size=%d capacity=%d growthEvents=%d", result.variant, result.finalSize, result.finalCapacity, result.growthEvents)
	return nil
}

func writeReport(outputDir, kind string, r *runResult, body string) error {
	name := fmt.Sprintf("%s_%s_%s_%d_%s.txt", kind, r.variant, r.dataset, r.numKeys, loadSuffix(r.load))
	return ioutil.WriteFile(filepath.Join(outputDir, name), []byte(body), 0o644)
}

func loadSuffix(load float64) string {
	return strings.ReplaceAll(fmt.Sprintf("%.2f", load), ".", "_")
}

func formatTimeReport(r *runResult) string {
	return fmt.Sprintf(
		"variant=%s dataset=%s numKeys=%d load=%v\ninsert=%s\nlookup=%s\n",
		r.variant, r.dataset, r.numKeys, r.load, r.insertElapsed, r.lookupElapsed,
	)
}

func formatSpaceReport(r *runResult) string {
	return fmt.Sprintf(
		"variant=%s dataset=%s numKeys=%d load=%v\nsize=%d\ncapacity=%d\ngrowthEvents=%d\n",
		r.variant, r.dataset, r.numKeys, r.load, r.finalSize, r.finalCapacity, r.growthEvents,
	)
}
