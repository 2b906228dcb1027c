// Package config handles environment-based configuration loading and the
// optional retrieval config file (fusion weights, per-lane overrides).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings, loaded once at
// boot and never mutated at runtime.
type EnvConfig struct {
	// Network
	ListenAddress   string
	Port            int
	APIToken        string // empty disables bearer auth on /api routes
	APIMaxBodyBytes int

	// Budgets and per-lane timeout overrides.
	GlobalBudget   time.Duration // RETRIEVAL_TIMEOUT_MS
	WebTimeout     time.Duration
	VectorTimeout  time.Duration
	KGTimeout      time.Duration
	NewsTimeout    time.Duration
	MarketsTimeout time.Duration
	KeywordTimeout time.Duration

	// Provider credentials. Presence is the enablement signal; values are
	// only ever read by the adapters themselves.
	PrimarySearchKey    string
	SecondarySearchKey  string
	NewsProviderAKey    string
	NewsProviderBKey    string
	MarketsPrimaryKey   string
	MarketsSecondaryKey string
	LLMAPIKey           string

	// Local retrieval service URLs.
	VectorServiceURL  string
	KGServiceURL      string
	KeywordServiceURL string

	KeylessFallbacksEnabled bool

	// Cache / fusion / warmup.
	CacheCapacity  int
	FusedCap       int
	WarmupSchedule string // cron expression; empty disables periodic re-warm
	ConfigFile     string // optional YAML weights/lane-override file
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error naming every invalid value at once.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("FATHOM_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("FATHOM_PORT", 2840, &errs)
	cfg.APIToken = os.Getenv("FATHOM_API_TOKEN")
	cfg.APIMaxBodyBytes = envInt("FATHOM_API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Budgets (canonical names; do not rename) ---
	cfg.GlobalBudget = envMs("RETRIEVAL_TIMEOUT_MS", 3000*time.Millisecond, &errs)
	cfg.WebTimeout = envMs("WEB_TIMEOUT_MS", 1000*time.Millisecond, &errs)
	cfg.VectorTimeout = envMs("VECTOR_TIMEOUT_MS", 2000*time.Millisecond, &errs)
	cfg.KGTimeout = envMs("KG_TIMEOUT_MS", 1500*time.Millisecond, &errs)
	cfg.NewsTimeout = envMs("NEWS_TIMEOUT_MS", 1000*time.Millisecond, &errs)
	cfg.MarketsTimeout = envMs("MARKETS_TIMEOUT_MS", 1000*time.Millisecond, &errs)
	cfg.KeywordTimeout = envMs("KEYWORD_TIMEOUT_MS", 1000*time.Millisecond, &errs)

	// --- Credentials (presence only; never validated here) ---
	cfg.PrimarySearchKey = os.Getenv("PRIMARY_SEARCH_KEY")
	cfg.SecondarySearchKey = os.Getenv("SECONDARY_SEARCH_KEY")
	cfg.NewsProviderAKey = os.Getenv("NEWS_PROVIDER_A_KEY")
	cfg.NewsProviderBKey = os.Getenv("NEWS_PROVIDER_B_KEY")
	cfg.MarketsPrimaryKey = os.Getenv("MARKETS_PRIMARY_KEY")
	cfg.MarketsSecondaryKey = os.Getenv("MARKETS_SECONDARY_KEY")
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")

	cfg.VectorServiceURL = strings.TrimSpace(os.Getenv("VECTOR_SERVICE_URL"))
	cfg.KGServiceURL = strings.TrimSpace(os.Getenv("KG_SERVICE_URL"))
	cfg.KeywordServiceURL = strings.TrimSpace(os.Getenv("KEYWORD_SERVICE_URL"))

	cfg.KeylessFallbacksEnabled = envBool("KEYLESS_FALLBACKS_ENABLED", false, &errs)

	// --- Cache / fusion / warmup ---
	cfg.CacheCapacity = envInt("FATHOM_CACHE_CAPACITY", 4096, &errs)
	cfg.FusedCap = envInt("FATHOM_FUSED_CAP", 20, &errs)
	cfg.WarmupSchedule = strings.TrimSpace(os.Getenv("FATHOM_WARMUP_SCHEDULE"))
	cfg.ConfigFile = strings.TrimSpace(os.Getenv("FATHOM_CONFIG_FILE"))

	// --- Validation ---
	if cfg.ListenAddress == "" {
		errs = append(errs, "FATHOM_LISTEN_ADDRESS must not be empty")
	}
	validatePort("FATHOM_PORT", cfg.Port, &errs)
	validatePositive("FATHOM_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	validatePositive("FATHOM_CACHE_CAPACITY", cfg.CacheCapacity, &errs)
	validatePositive("FATHOM_FUSED_CAP", cfg.FusedCap, &errs)

	for _, check := range []struct {
		name string
		val  time.Duration
	}{
		{"RETRIEVAL_TIMEOUT_MS", cfg.GlobalBudget},
		{"WEB_TIMEOUT_MS", cfg.WebTimeout},
		{"VECTOR_TIMEOUT_MS", cfg.VectorTimeout},
		{"KG_TIMEOUT_MS", cfg.KGTimeout},
		{"NEWS_TIMEOUT_MS", cfg.NewsTimeout},
		{"MARKETS_TIMEOUT_MS", cfg.MarketsTimeout},
		{"KEYWORD_TIMEOUT_MS", cfg.KeywordTimeout},
	} {
		if check.val <= 0 {
			errs = append(errs, check.name+" must be positive")
		}
	}

	if cfg.WarmupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.WarmupSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("FATHOM_WARMUP_SCHEDULE: invalid cron expression %q: %v", cfg.WarmupSchedule, err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

// envMs reads an integer millisecond value into a Duration.
func envMs(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return time.Duration(n) * time.Millisecond
}

func envBool(key string, defaultVal bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
		return defaultVal
	}
	return b
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
