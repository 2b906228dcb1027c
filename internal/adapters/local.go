package adapters

import (
	"context"
	"strings"

	"github.com/fathomsearch/fathom/internal/lane"
)

type localSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// LocalServiceAdapter speaks the shared search protocol of the local
// retrieval services (vector index, knowledge graph, keyword index):
// POST {query, top_k} to /search, results in the common hit shape. The
// services sit on the same network segment; no auth, no TLS.
type LocalServiceAdapter struct {
	client  *Client
	id      lane.ID
	baseURL string
}

// NewLocalServiceAdapter creates an adapter for one local service.
func NewLocalServiceAdapter(client *Client, id lane.ID, baseURL string) *LocalServiceAdapter {
	return &LocalServiceAdapter{
		client:  client,
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Query implements lane.Adapter.
func (a *LocalServiceAdapter) Query(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
	var resp searchResponse
	err := a.client.PostJSON(ctx, a.baseURL+"/search", nil, localSearchRequest{Query: text, TopK: topK}, &resp)
	if err != nil {
		return nil, err
	}
	return hitsToEvidence(a.id, resp.Results), nil
}
