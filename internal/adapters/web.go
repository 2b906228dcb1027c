package adapters

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/fathomsearch/fathom/internal/lane"
)

// searchHit is the wire shape shared by the hosted search providers and
// the local retrieval services.
type searchHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

// webProvider is one upstream the web lane can query.
type webProvider struct {
	name    string
	baseURL string
	key     string // empty means keyless endpoint
}

// WebAdapter queries the primary hosted search provider and falls back
// to the secondary, then to the keyless endpoint when fallbacks are
// enabled. Providers are tried in order within the lane's single
// deadline; there is no per-provider retry.
type WebAdapter struct {
	client    *Client
	providers []webProvider
}

// NewWebAdapter assembles the provider chain. Pass empty keys to omit a
// keyed provider; keylessURL is only used when keylessFallback is set.
func NewWebAdapter(client *Client, primaryURL, primaryKey, secondaryURL, secondaryKey, keylessURL string, keylessFallback bool) *WebAdapter {
	a := &WebAdapter{client: client}
	if primaryKey != "" {
		a.providers = append(a.providers, webProvider{name: "primary", baseURL: primaryURL, key: primaryKey})
	}
	if secondaryKey != "" {
		a.providers = append(a.providers, webProvider{name: "secondary", baseURL: secondaryURL, key: secondaryKey})
	}
	if keylessFallback && keylessURL != "" {
		a.providers = append(a.providers, webProvider{name: "keyless", baseURL: keylessURL})
	}
	return a
}

// Query implements lane.Adapter.
func (a *WebAdapter) Query(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
	if len(a.providers) == 0 {
		return nil, lane.NewAdapterError(lane.ErrorInternal, fmt.Errorf("web lane has no providers"))
	}
	var lastErr error
	for _, p := range a.providers {
		items, err := a.queryProvider(ctx, p, text, topK)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Printf("[web] %s provider failed, trying next: %v", p.name, err)
	}
	return nil, lastErr
}

func (a *WebAdapter) queryProvider(ctx context.Context, p webProvider, text string, topK int) ([]lane.Evidence, error) {
	u := fmt.Sprintf("%s?q=%s&limit=%d", p.baseURL, url.QueryEscape(text), topK)
	header := http.Header{}
	if p.key != "" {
		header.Set("Authorization", "Bearer "+p.key)
	}
	var resp searchResponse
	if err := a.client.GetJSON(ctx, u, header, &resp); err != nil {
		return nil, err
	}
	return hitsToEvidence(lane.Web, resp.Results), nil
}

// hitsToEvidence converts provider hits into scored evidence. Providers
// that return no score get a rank-derived one so fusion always sees a
// lane-local ordering.
func hitsToEvidence(id lane.ID, hits []searchHit) []lane.Evidence {
	now := time.Now().UTC()
	out := make([]lane.Evidence, 0, len(hits))
	for i, h := range hits {
		score := h.Score
		if score <= 0 {
			score = float64(len(hits)-i) / float64(len(hits))
		}
		sourceID := h.ID
		if sourceID == "" {
			sourceID = h.URL
		}
		if sourceID == "" {
			continue
		}
		out = append(out, lane.Evidence{
			Lane:      id,
			SourceID:  sourceID,
			Title:     h.Title,
			Snippet:   h.Snippet,
			Score:     score,
			URL:       h.URL,
			FetchedAt: now,
		})
	}
	return out
}
