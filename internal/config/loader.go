package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "RISKD_"
	envConfigFile = "RISKD_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if RISKD_CONFIG is set
//  3. env (prefix RISKD_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RISKD_QUEUE_SIZE -> queue_size; underscores are kept to match the
	// flat koanf tags. List values are comma separated.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		if key == "kafka_brokers" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot fix up on its own.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.ResultRetention <= 0:
		return fmt.Errorf("%w: result_retention must be positive", ErrInvalidConfig)
	case c.MaxWindowsPerRun < 0:
		return fmt.Errorf("%w: max_windows_per_run must not be negative", ErrInvalidConfig)
	case len(c.KafkaBrokers) > 0 && c.KafkaTopic == "":
		return fmt.Errorf("%w: kafka_topic is required with kafka_brokers", ErrInvalidConfig)
	case c.ScoringWatch && c.ScoringConfigPath == "":
		return fmt.Errorf("%w: scoring_watch needs scoring_config_path", ErrInvalidConfig)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
