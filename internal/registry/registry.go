// Package registry holds the immutable per-lane configuration resolved at
// boot (defaults → env overrides → config file → key gate) and answers
// which lanes a request may use.
package registry

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fathomsearch/fathom/internal/config"
	"github.com/fathomsearch/fathom/internal/lane"
)

// LaneConfig is the process-lifetime configuration of one lane.
// Read-only after boot; runtime reconfiguration would be a swap of the
// whole registry, never in-place mutation.
type LaneConfig struct {
	Enabled         bool          `json:"enabled"`
	Timeout         time.Duration `json:"timeout"`
	TopK            int           `json:"top_k"`
	MaxFailures     int           `json:"max_failures"`
	Cooldown        time.Duration `json:"cooldown"`
	TTL             time.Duration `json:"ttl"`
	KeylessFallback bool          `json:"keyless_fallback"`
}

// Registry is the immutable set of lane configs.
type Registry struct {
	configs map[lane.ID]LaneConfig
}

// New creates a Registry from resolved configs. The map is copied.
func New(configs map[lane.ID]LaneConfig) *Registry {
	cp := make(map[lane.ID]LaneConfig, len(configs))
	for id, cfg := range configs {
		cp[id] = cfg
	}
	return &Registry{configs: cp}
}

// Config returns the configuration of a lane.
func (r *Registry) Config(id lane.ID) (LaneConfig, bool) {
	cfg, ok := r.configs[id]
	return cfg, ok
}

// EnabledLanes intersects the requested lanes (nil means "all") with the
// enabled set. The second return value lists requested lanes that were
// silently filtered because they are disabled or unknown; callers record
// those as disabled with reason "not_enabled".
func (r *Registry) EnabledLanes(requested []lane.ID) (enabled, filtered []lane.ID) {
	candidates := requested
	if len(candidates) == 0 {
		candidates = lane.All()
	}
	enabled = lo.Filter(candidates, func(id lane.ID, _ int) bool {
		cfg, ok := r.configs[id]
		return ok && cfg.Enabled
	})
	if len(requested) > 0 {
		filtered = lo.Filter(requested, func(id lane.ID, _ int) bool {
			cfg, ok := r.configs[id]
			return !ok || !cfg.Enabled
		})
	}
	return enabled, filtered
}

// DefaultConfigs returns the built-in lane defaults with env-driven
// timeout overrides applied.
func DefaultConfigs(env *config.EnvConfig) map[lane.ID]LaneConfig {
	return map[lane.ID]LaneConfig{
		lane.Web: {
			Enabled: true, Timeout: env.WebTimeout, TopK: 10,
			MaxFailures: 3, Cooldown: 10 * time.Second, TTL: 10 * time.Minute,
		},
		lane.News: {
			Enabled: true, Timeout: env.NewsTimeout, TopK: 10,
			MaxFailures: 3, Cooldown: 10 * time.Second, TTL: 10 * time.Minute,
		},
		lane.Markets: {
			Enabled: true, Timeout: env.MarketsTimeout, TopK: 10,
			MaxFailures: 3, Cooldown: 10 * time.Second, TTL: 10 * time.Minute,
		},
		lane.Vector: {
			Enabled: true, Timeout: env.VectorTimeout, TopK: 5,
			MaxFailures: 3, Cooldown: 10 * time.Second, TTL: time.Hour,
		},
		lane.KG: {
			Enabled: true, Timeout: env.KGTimeout, TopK: 6,
			MaxFailures: 3, Cooldown: 10 * time.Second, TTL: time.Hour,
		},
		lane.Keyword: {
			Enabled: true, Timeout: env.KeywordTimeout, TopK: 10,
			MaxFailures: 3, Cooldown: 10 * time.Second, TTL: 10 * time.Minute,
		},
	}
}

// ApplyFileOverrides layers config-file lane overrides onto configs.
// Unknown lane names in the file are an error (they are always typos).
func ApplyFileOverrides(configs map[lane.ID]LaneConfig, file *config.FileConfig) error {
	if file == nil {
		return nil
	}
	for name, ov := range file.Lanes {
		id, err := lane.ParseID(name)
		if err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		cfg := configs[id]
		if ov.Enabled != nil {
			cfg.Enabled = *ov.Enabled
		}
		if ov.Timeout != nil {
			cfg.Timeout = ov.Timeout.Std()
		}
		if ov.TopK != nil {
			cfg.TopK = *ov.TopK
		}
		if ov.MaxFailures != nil {
			cfg.MaxFailures = *ov.MaxFailures
		}
		if ov.Cooldown != nil {
			cfg.Cooldown = ov.Cooldown.Std()
		}
		if ov.TTL != nil {
			cfg.TTL = ov.TTL.Std()
		}
		if ov.KeylessFallback != nil {
			cfg.KeylessFallback = *ov.KeylessFallback
		}
		configs[id] = cfg
	}
	return nil
}

// Configs returns a copy of all lane configs, for wiring collaborators
// (breaker thresholds, health reporting) at boot.
func (r *Registry) Configs() map[lane.ID]LaneConfig {
	cp := make(map[lane.ID]LaneConfig, len(r.configs))
	for id, cfg := range r.configs {
		cp[id] = cfg
	}
	return cp
}
