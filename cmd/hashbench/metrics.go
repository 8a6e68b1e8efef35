// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	tableSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hashkit_table_size",
		Help: "Live entry count of the table under benchmark.",
	}, []string{"variant", "dataset"})

	tableCapacity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hashkit_table_capacity",
		Help: "Variant-specific capacity measure of the table under benchmark.",
	}, []string{"variant", "dataset"})

	tableLoadFactor = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hashkit_load_factor",
		Help: "Live entries divided by the variant's load-factor denominator.",
	}, []string{"variant", "dataset"})

	growthEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hashkit_growth_events_total",
		Help: "Capacity doublings during a run, estimated from the final-to-initial capacity ratio.",
	}, []string{"variant", "dataset"})
)

func init() {
	prometheus.MustRegister(tableSize, tableCapacity, tableLoadFactor, growthEvents)
}
