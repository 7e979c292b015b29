// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - All functions accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory detection queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the run ID deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ResultRetention caps how many detection results are kept; the oldest
	// are evicted first.
	ResultRetention int `koanf:"result_retention"`

	// MaxWindowsPerRun rejects runs with more windows; 0 disables the cap.
	MaxWindowsPerRun int `koanf:"max_windows_per_run"`

	// ScoringConfigPath points at a YAML scoring configuration. Empty means
	// the built-in configuration.
	ScoringConfigPath string `koanf:"scoring_config_path"`

	// ScoringWatch reloads the scoring configuration when the file changes.
	ScoringWatch bool `koanf:"scoring_watch"`

	// KafkaBrokers lists the brokers results are published to. Empty
	// disables publishing.
	KafkaBrokers []string `koanf:"kafka_brokers"`

	// KafkaTopic is the topic detection results are written to.
	KafkaTopic string `koanf:"kafka_topic"`
}

// New creates a Config with defaults. The context is reserved for loaders
// that need it.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		QueueSize:        10_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       100_000,
		ResultRetention:  50_000,
		MaxWindowsPerRun: 2_000,
		KafkaTopic:       "exposure-risk-results",
	}
}
