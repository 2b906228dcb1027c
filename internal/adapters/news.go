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

type newsArticle struct {
	ID          string  `json:"id"`
	Headline    string  `json:"headline"`
	Summary     string  `json:"summary"`
	URL         string  `json:"url"`
	Relevance   float64 `json:"relevance"`
	PublishedAt string  `json:"published_at"`
}

type newsResponse struct {
	Articles []newsArticle `json:"articles"`
}

// NewsAdapter queries news provider A and falls back to provider B.
// Both speak the same article shape; keys go in the X-Api-Key header.
type NewsAdapter struct {
	client    *Client
	providers []webProvider
}

// NewNewsAdapter assembles the news provider chain from whichever keys
// are present.
func NewNewsAdapter(client *Client, providerAURL, providerAKey, providerBURL, providerBKey string) *NewsAdapter {
	a := &NewsAdapter{client: client}
	if providerAKey != "" {
		a.providers = append(a.providers, webProvider{name: "provider-a", baseURL: providerAURL, key: providerAKey})
	}
	if providerBKey != "" {
		a.providers = append(a.providers, webProvider{name: "provider-b", baseURL: providerBURL, key: providerBKey})
	}
	return a
}

// Query implements lane.Adapter.
func (a *NewsAdapter) Query(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
	if len(a.providers) == 0 {
		return nil, lane.NewAdapterError(lane.ErrorInternal, fmt.Errorf("news lane has no providers"))
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
		log.Printf("[news] %s failed, trying next: %v", p.name, err)
	}
	return nil, lastErr
}

func (a *NewsAdapter) queryProvider(ctx context.Context, p webProvider, text string, topK int) ([]lane.Evidence, error) {
	u := fmt.Sprintf("%s?q=%s&page_size=%d", p.baseURL, url.QueryEscape(text), topK)
	header := http.Header{}
	header.Set("X-Api-Key", p.key)

	var resp newsResponse
	if err := a.client.GetJSON(ctx, u, header, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]lane.Evidence, 0, len(resp.Articles))
	for i, art := range resp.Articles {
		score := art.Relevance
		if score <= 0 {
			score = float64(len(resp.Articles)-i) / float64(len(resp.Articles))
		}
		sourceID := art.ID
		if sourceID == "" {
			sourceID = art.URL
		}
		if sourceID == "" {
			continue
		}
		out = append(out, lane.Evidence{
			Lane:      lane.News,
			SourceID:  sourceID,
			Title:     art.Headline,
			Snippet:   art.Summary,
			Score:     score,
			URL:       art.URL,
			FetchedAt: now,
		})
	}
	return out, nil
}
