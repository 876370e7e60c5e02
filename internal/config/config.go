package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Config holds tunable knobs for signal detection, insight scoring and
// diff reporting.
type Config struct {
	Signals  SignalConfig  `json:"signals"`
	Insights InsightConfig `json:"insights"`
	Diff     DiffConfig    `json:"diff"`
}

// SignalConfig tunes the heuristic optimization-signal detection.
type SignalConfig struct {
	// RewriteNamePattern flags an index name as a rewrite candidate.
	RewriteNamePattern string `json:"rewrite_name_pattern"`
	// PartitionKeys and TabletKeys are the attribute keys inspected
	// for "<selected>/<total>" pruning evidence.
	PartitionKeys []string `json:"partition_keys"`
	TabletKeys    []string `json:"tablet_keys"`
}

// InsightConfig defines thresholds for insight generation.
type InsightConfig struct {
	PushdownWarnRatio   float64 `json:"pushdown_warn_ratio"`
	HighCardinalityRows int64   `json:"high_cardinality_rows"`
	MaxMessages         int     `json:"max_messages"`
}

// DiffConfig defines thresholds for diff summaries.
type DiffConfig struct {
	MaxItems int `json:"max_items"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Signals: SignalConfig{
			RewriteNamePattern: "mv|rollup|materialized|agg",
			PartitionKeys:      []string{"partitions"},
			TabletKeys:         []string{"tablets", "tabletRatio"},
		},
		Insights: InsightConfig{
			PushdownWarnRatio:   0.5,
			HighCardinalityRows: 10_000_000,
			MaxMessages:         8,
		},
		Diff: DiffConfig{
			MaxItems: 8,
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path (JSON). Empty path
// resets to default.
func Apply(path string) error {
	if path == "" {
		Use(Default())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	Use(cfg)
	return nil
}
