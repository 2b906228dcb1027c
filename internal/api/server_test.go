package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fathomsearch/fathom/internal/breaker"
	"github.com/fathomsearch/fathom/internal/executor"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/orchestrator"
	"github.com/fathomsearch/fathom/internal/registry"
	"github.com/fathomsearch/fathom/internal/rescache"
	"github.com/fathomsearch/fathom/internal/telemetry"
)

func newTestServer(t *testing.T, apiToken string) *httptest.Server {
	t.Helper()

	cfgs := make(map[lane.ID]registry.LaneConfig)
	for _, id := range lane.All() {
		cfgs[id] = registry.LaneConfig{
			Enabled: true, Timeout: time.Second, TopK: 5,
			MaxFailures: 3, Cooldown: 10 * time.Second, TTL: time.Hour,
		}
	}
	reg := registry.New(cfgs)

	settings := make(map[lane.ID]breaker.Settings)
	for id, cfg := range cfgs {
		settings[id] = breaker.Settings{MaxFailures: cfg.MaxFailures, Cooldown: cfg.Cooldown}
	}
	br := breaker.New(breaker.Config{Settings: settings})
	cache := rescache.New(64)
	t.Cleanup(cache.Close)
	tel := telemetry.New()

	adapters := make(map[lane.ID]lane.Adapter)
	for _, id := range lane.All() {
		id := id
		adapters[id] = lane.AdapterFunc(func(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
			return []lane.Evidence{{Lane: id, SourceID: fmt.Sprintf("%s-1", id), Title: "t", Score: 0.9}}, nil
		})
	}

	exec := executor.New(executor.Config{
		Registry: reg, Breaker: br, Cache: cache, Telemetry: tel, Adapters: adapters,
	})
	orch := orchestrator.New(orchestrator.Config{
		Registry: reg, Breaker: br, Executor: exec, Telemetry: tel,
		RetrievalCap: 3 * time.Second, FusedCap: 20,
	})
	warmup := orchestrator.NewWarmup(exec, reg)
	warmup.Run(context.Background())

	srv := NewServer(ServerConfig{
		Port:         0,
		APIToken:     apiToken,
		MaxBodyBytes: 1 << 12,
		Orchestrator: orch,
		Warmup:       warmup,
		Registry:     reg,
		Breaker:      br,
		Telemetry:    tel,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postRetrieve(t *testing.T, ts *httptest.Server, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/retrieve", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRetrieveEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	resp := postRetrieve(t, ts, "", `{"text":"capital of france","class":"simple"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body orchestrator.FusedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.TraceID == "" || len(body.Evidence) == 0 {
		t.Fatalf("response incomplete: %+v", body)
	}
	if len(body.Lanes) != len(lane.All()) {
		t.Fatalf("lanes reported = %d", len(body.Lanes))
	}
}

func TestRetrieveEndpoint_BadRequests(t *testing.T) {
	ts := newTestServer(t, "")

	cases := []string{
		`not json`,
		`{"text":""}`,
		`{"text":"ok","class":"psychic"}`,
	}
	for _, body := range cases {
		resp := postRetrieve(t, ts, "", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			t.Fatal(err)
		}
		if e.Error.Code != "INVALID_ARGUMENT" {
			t.Fatalf("code = %q", e.Error.Code)
		}
	}
}

func TestRetrieveEndpoint_BodyLimit(t *testing.T) {
	ts := newTestServer(t, "")

	huge := fmt.Sprintf(`{"text":%q}`, strings.Repeat("x", 1<<13))
	resp := postRetrieve(t, ts, "", huge)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestRetrieveEndpoint_Auth(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	resp := postRetrieve(t, ts, "", `{"text":"hi"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
	resp = postRetrieve(t, ts, "wrong", `{"text":"hi"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", resp.StatusCode)
	}
	resp = postRetrieve(t, ts, "sekrit", `{"text":"hi"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authed status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, "sekrit")

	// Health must not require auth.
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if !h.Ready {
		t.Fatal("warmed server must report ready")
	}
	if h.Version == "" {
		t.Fatal("health must carry build version")
	}
	for _, id := range lane.All() {
		lh, ok := h.Lanes[id]
		if !ok {
			t.Fatalf("lane %s missing from health report", id)
		}
		if !lh.Enabled || lh.BreakerState != string(breaker.Closed) {
			t.Fatalf("lane %s health = %+v", id, lh)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	postRetrieve(t, ts, "", `{"text":"warm the counters"}`)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(raw, []byte("fathom_request_latency_seconds")) {
		t.Fatal("metrics scrape missing request latency histogram")
	}
	if !bytes.Contains(raw, []byte("fathom_lane_latency_seconds")) {
		t.Fatal("metrics scrape missing lane latency histogram")
	}
}
