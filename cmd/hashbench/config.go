// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// batchConfig is the representation of hashbench's --config YAML file: a
// list of runs to execute back to back, each overriding the CLI defaults.
type batchConfig struct {
	Runs []runConfig `yaml:"runs"`
}

// runConfig describes a single benchmark run.
type runConfig struct {
	Hashtable string  `yaml:"hashtable"`
	Type      string  `yaml:"type"`
	NumKeys   int     `yaml:"numKeys"`
	Load      float64 `yaml:"load"`
}

func loadBatchConfig(path string) (*batchConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	var cfg batchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if len(cfg.Runs) == 0 {
		return nil, fmt.Errorf("config %q declares no runs", path)
	}
	return &cfg, nil
}
