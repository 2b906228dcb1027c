package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LaneOverride carries optional per-lane settings from the config file.
// Nil pointers mean "keep the built-in default".
type LaneOverride struct {
	Enabled         *bool     `yaml:"enabled"`
	Timeout         *Duration `yaml:"timeout"`
	TopK            *int      `yaml:"top_k"`
	MaxFailures     *int      `yaml:"max_failures"`
	Cooldown        *Duration `yaml:"cooldown"`
	TTL             *Duration `yaml:"ttl"`
	KeylessFallback *bool     `yaml:"keyless_fallback"`
}

// FileConfig is the optional YAML retrieval config: fusion weights per
// query class and per-lane overrides.
type FileConfig struct {
	// Weights maps query class → lane → fusion weight.
	Weights  map[string]map[string]float64 `yaml:"weights"`
	Lanes    map[string]LaneOverride       `yaml:"lanes"`
	FusedCap *int                          `yaml:"fused_cap"`
}

// LoadFileConfig reads and parses the YAML config at path. A missing path
// ("") yields an empty config, not an error.
func LoadFileConfig(path string) (*FileConfig, error) {
	if path == "" {
		return &FileConfig{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
