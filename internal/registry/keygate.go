package registry

import (
	"errors"
	"log"

	"github.com/fathomsearch/fathom/internal/config"
	"github.com/fathomsearch/fathom/internal/lane"
)

// ErrNoSearchProviders is returned when neither the web nor the news lane
// has any credentials and keyless fallback is disabled. With both remote
// search classes dark the service cannot answer anything useful, so boot
// fails fast with an actionable message instead of degrading.
var ErrNoSearchProviders = errors.New(
	"no web or news provider credentials configured and KEYLESS_FALLBACKS_ENABLED is false; " +
		"set PRIMARY_SEARCH_KEY / SECONDARY_SEARCH_KEY or NEWS_PROVIDER_A_KEY / NEWS_PROVIDER_B_KEY, " +
		"or enable keyless fallbacks")

// ApplyKeyGate runs the startup credential matrix over configs, disabling
// lanes whose required credentials or service URLs are absent. It mutates
// configs in place and returns ErrNoSearchProviders in the one fail-fast
// case; every other gap degrades gracefully.
func ApplyKeyGate(configs map[lane.ID]LaneConfig, env *config.EnvConfig) error {
	webHasKeys := env.PrimarySearchKey != "" || env.SecondarySearchKey != ""
	newsHasKeys := env.NewsProviderAKey != "" || env.NewsProviderBKey != ""

	if !webHasKeys && !newsHasKeys && !env.KeylessFallbacksEnabled {
		return ErrNoSearchProviders
	}

	if !webHasKeys {
		cfg := configs[lane.Web]
		if env.KeylessFallbacksEnabled {
			cfg.KeylessFallback = true
			log.Printf("[keygate] web: no search keys, using keyless fallback")
		} else {
			cfg.Enabled = false
			log.Printf("[keygate] web: no search keys, lane disabled")
		}
		configs[lane.Web] = cfg
	}

	if !newsHasKeys {
		cfg := configs[lane.News]
		cfg.Enabled = false
		log.Printf("[keygate] news: no provider keys, lane disabled")
		configs[lane.News] = cfg
	}

	if env.MarketsPrimaryKey == "" {
		cfg := configs[lane.Markets]
		cfg.Enabled = false
		log.Printf("[keygate] markets: no primary key, lane disabled")
		configs[lane.Markets] = cfg
	}

	// Local services need URLs, never third-party keys.
	for id, url := range map[lane.ID]string{
		lane.Vector:  env.VectorServiceURL,
		lane.KG:      env.KGServiceURL,
		lane.Keyword: env.KeywordServiceURL,
	} {
		if url == "" {
			cfg := configs[id]
			cfg.Enabled = false
			log.Printf("[keygate] %s: no service URL, lane disabled", id)
			configs[id] = cfg
		}
	}

	return nil
}
