package main

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
)

// fileConfig is the on-disk shape read with naoina/toml, the config
// library the teacher's own cmd-style entrypoints use for structured,
// commented config files over flags for anything beyond a couple of knobs.
type fileConfig struct {
	First             string `toml:"first"`
	Count             int64  `toml:"count"`
	Reverse           bool   `toml:"reverse"`
	MaxPerRequest     int    `toml:"max_per_request"`
	SafeReorgDistance int64  `toml:"safe_reorg_distance"`

	DB struct {
		Driver string `toml:"driver"`
		DSN    string `toml:"dsn"`
		Table  string `toml:"table"`
	} `toml:"db"`

	FlowControl struct {
		CacheSize     int    `toml:"cache_size"`
		CostPerHeader uint64 `toml:"cost_per_header"`
	} `toml:"flow_control"`

	RequestsPerSecond float64 `toml:"requests_per_second"`
	RequestBurst      int     `toml:"request_burst"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
