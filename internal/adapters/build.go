package adapters

import (
	"github.com/fathomsearch/fathom/internal/config"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/registry"
)

// Hosted provider gateway endpoints. The org-level gateway terminates
// provider-specific auth and response shapes so the adapters only speak
// the common hit format.
const (
	defaultPrimarySearchURL   = "https://gw.fathomsearch.dev/search/primary/v1"
	defaultSecondarySearchURL = "https://gw.fathomsearch.dev/search/secondary/v1"
	defaultKeylessSearchURL   = "https://gw.fathomsearch.dev/search/keyless/v1"
	defaultNewsProviderAURL   = "https://gw.fathomsearch.dev/news/a/v1"
	defaultNewsProviderBURL   = "https://gw.fathomsearch.dev/news/b/v1"
	defaultMarketsPrimaryURL  = "https://gw.fathomsearch.dev/markets/primary/v1"
	defaultMarketsSecondURL   = "https://gw.fathomsearch.dev/markets/secondary/v1"
)

// Build assembles the adapter set for all lanes left enabled by the key
// gate. Lanes the gate disabled simply get no adapter; the registry
// keeps them from ever being launched.
func Build(env *config.EnvConfig, configs map[lane.ID]registry.LaneConfig, client *Client) map[lane.ID]lane.Adapter {
	out := make(map[lane.ID]lane.Adapter)

	if cfg, ok := configs[lane.Web]; ok && cfg.Enabled {
		out[lane.Web] = NewWebAdapter(client,
			defaultPrimarySearchURL, env.PrimarySearchKey,
			defaultSecondarySearchURL, env.SecondarySearchKey,
			defaultKeylessSearchURL, cfg.KeylessFallback,
		)
	}
	if cfg, ok := configs[lane.News]; ok && cfg.Enabled {
		out[lane.News] = NewNewsAdapter(client,
			defaultNewsProviderAURL, env.NewsProviderAKey,
			defaultNewsProviderBURL, env.NewsProviderBKey,
		)
	}
	if cfg, ok := configs[lane.Markets]; ok && cfg.Enabled {
		out[lane.Markets] = NewMarketsAdapter(client,
			defaultMarketsPrimaryURL, env.MarketsPrimaryKey,
			defaultMarketsSecondURL, env.MarketsSecondaryKey,
		)
	}
	if cfg, ok := configs[lane.Vector]; ok && cfg.Enabled {
		out[lane.Vector] = NewLocalServiceAdapter(client, lane.Vector, env.VectorServiceURL)
	}
	if cfg, ok := configs[lane.KG]; ok && cfg.Enabled {
		out[lane.KG] = NewLocalServiceAdapter(client, lane.KG, env.KGServiceURL)
	}
	if cfg, ok := configs[lane.Keyword]; ok && cfg.Enabled {
		out[lane.Keyword] = NewLocalServiceAdapter(client, lane.Keyword, env.KeywordServiceURL)
	}
	return out
}
