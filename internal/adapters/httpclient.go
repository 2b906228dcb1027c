// Package adapters implements the per-lane retrieval adapters: remote
// search/news/markets providers over HTTPS and local retrieval services
// (vector, knowledge graph, keyword) over HTTP. Adapters never read
// clocks for scoring and never retry; budget enforcement lives above
// them in the executor.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fathomsearch/fathom/internal/lane"
)

// Client is the shared HTTP layer of all remote adapters. It maps
// transport and status failures onto the adapter error taxonomy so the
// executor can classify without knowing providers.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

// NewClient creates a Client. The underlying http.Client carries no
// timeout of its own; deadlines arrive through the request context.
func NewClient(userAgent string) *Client {
	return &Client{
		HTTP: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		UserAgent: userAgent,
	}
}

// GetJSON issues a GET and decodes a JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return lane.NewAdapterError(lane.ErrorInternal, err)
	}
	return c.do(req, header, out)
}

// PostJSON issues a POST with a JSON body and decodes a JSON response
// into out.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return lane.NewAdapterError(lane.ErrorInternal, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return lane.NewAdapterError(lane.ErrorInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, header, out)
}

func (c *Client) do(req *http.Request, header http.Header, out any) error {
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			// Deadline or cancellation; the executor reports these as
			// timeouts, not provider faults.
			return ctxErr
		}
		return lane.NewAdapterError(lane.ErrorTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return lane.NewAdapterError(classifyStatus(resp.StatusCode),
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return lane.NewAdapterError(lane.ErrorBadResponse, fmt.Errorf("decode response from %s: %w", req.URL.Host, err))
	}
	return nil
}

func classifyStatus(code int) lane.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return lane.ErrorAuth
	case code == http.StatusTooManyRequests:
		return lane.ErrorRateLimited
	case code >= 500:
		return lane.ErrorTransport
	default:
		return lane.ErrorBadResponse
	}
}
