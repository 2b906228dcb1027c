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

type marketQuote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change_percent"`
	Currency  string  `json:"currency"`
	Relevance float64 `json:"relevance"`
}

type marketsResponse struct {
	Quotes []marketQuote `json:"quotes"`
}

// MarketsAdapter resolves a query against the market data providers and
// renders matching quotes as evidence snippets.
type MarketsAdapter struct {
	client    *Client
	providers []webProvider
}

// NewMarketsAdapter assembles the markets provider chain from whichever
// keys are present.
func NewMarketsAdapter(client *Client, primaryURL, primaryKey, secondaryURL, secondaryKey string) *MarketsAdapter {
	a := &MarketsAdapter{client: client}
	if primaryKey != "" {
		a.providers = append(a.providers, webProvider{name: "primary", baseURL: primaryURL, key: primaryKey})
	}
	if secondaryKey != "" {
		a.providers = append(a.providers, webProvider{name: "secondary", baseURL: secondaryURL, key: secondaryKey})
	}
	return a
}

// Query implements lane.Adapter.
func (a *MarketsAdapter) Query(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
	if len(a.providers) == 0 {
		return nil, lane.NewAdapterError(lane.ErrorInternal, fmt.Errorf("markets lane has no providers"))
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
		log.Printf("[markets] %s failed, trying next: %v", p.name, err)
	}
	return nil, lastErr
}

func (a *MarketsAdapter) queryProvider(ctx context.Context, p webProvider, text string, topK int) ([]lane.Evidence, error) {
	u := fmt.Sprintf("%s?q=%s&limit=%d", p.baseURL, url.QueryEscape(text), topK)
	header := http.Header{}
	header.Set("X-Api-Key", p.key)

	var resp marketsResponse
	if err := a.client.GetJSON(ctx, u, header, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]lane.Evidence, 0, len(resp.Quotes))
	for i, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		score := q.Relevance
		if score <= 0 {
			score = float64(len(resp.Quotes)-i) / float64(len(resp.Quotes))
		}
		out = append(out, lane.Evidence{
			Lane:      lane.Markets,
			SourceID:  "quote:" + q.Symbol,
			Title:     fmt.Sprintf("%s (%s)", q.Name, q.Symbol),
			Snippet:   fmt.Sprintf("%.2f %s (%+.2f%%)", q.Price, q.Currency, q.Change),
			Score:     score,
			FetchedAt: now,
		})
	}
	return out, nil
}
