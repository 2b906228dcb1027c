package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fathomsearch/fathom/internal/breaker"
	"github.com/fathomsearch/fathom/internal/executor"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/registry"
	"github.com/fathomsearch/fathom/internal/rescache"
	"github.com/fathomsearch/fathom/internal/telemetry"
)

func buildWarmup(t *testing.T, adapters map[lane.ID]lane.Adapter) (*Warmup, *breaker.Breaker, *rescache.Cache) {
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

	exec := executor.New(executor.Config{
		Registry:  reg,
		Breaker:   br,
		Cache:     cache,
		Telemetry: telemetry.New(),
		Adapters:  adapters,
	})
	return NewWarmup(exec, reg), br, cache
}

func TestWarmup_RunMarksReady(t *testing.T) {
	var mu sync.Mutex
	touched := make(map[lane.ID]bool)
	adapters := make(map[lane.ID]lane.Adapter)
	for _, id := range lane.All() {
		id := id
		adapters[id] = lane.AdapterFunc(func(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
			mu.Lock()
			touched[id] = true
			mu.Unlock()
			return []lane.Evidence{{Lane: id, SourceID: "canary"}}, nil
		})
	}

	w, _, _ := buildWarmup(t, adapters)
	if w.Ready() {
		t.Fatal("must not be ready before the first pass")
	}
	w.Run(context.Background())
	if !w.Ready() {
		t.Fatal("must be ready after the pass")
	}
	mu.Lock()
	defer mu.Unlock()
	for _, id := range lane.Heavy() {
		if !touched[id] {
			t.Fatalf("lane %s never saw its canary", id)
		}
	}
	// Canaries against the metered external lanes would bill providers
	// on every boot and re-warm.
	for _, id := range []lane.ID{lane.Web, lane.News, lane.Markets} {
		if touched[id] {
			t.Fatalf("external lane %s received warmup traffic", id)
		}
	}
}

func TestWarmup_FailuresDoNotGateReadinessOrTripBreakers(t *testing.T) {
	adapters := make(map[lane.ID]lane.Adapter)
	for _, id := range lane.All() {
		adapters[id] = lane.AdapterFunc(func(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
			return nil, lane.NewAdapterError(lane.ErrorTransport, errors.New("cold"))
		})
	}
	w, br, cache := buildWarmup(t, adapters)

	w.Run(context.Background())
	w.Run(context.Background())
	w.Run(context.Background())

	if !w.Ready() {
		t.Fatal("failed canaries must still mark ready")
	}
	for _, id := range lane.All() {
		if br.StateOf(id) != breaker.Closed {
			t.Fatalf("%s breaker opened from warmup traffic", id)
		}
	}
	if cache.Size() != 0 {
		t.Fatal("canary results must not populate the request cache")
	}
}

func TestWarmup_StartRunsInitialPass(t *testing.T) {
	adapters := make(map[lane.ID]lane.Adapter)
	for _, id := range lane.All() {
		id := id
		adapters[id] = lane.AdapterFunc(func(ctx context.Context, text string, topK int) ([]lane.Evidence, error) {
			return []lane.Evidence{{Lane: id, SourceID: "canary"}}, nil
		})
	}
	w, _, _ := buildWarmup(t, adapters)

	if err := w.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !w.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("warmup never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWarmup_RejectsBadSchedule(t *testing.T) {
	w, _, _ := buildWarmup(t, map[lane.ID]lane.Adapter{})
	if err := w.Start(context.Background(), "not a cron spec"); err == nil {
		t.Fatal("invalid cron schedule must be rejected")
	}
	w.Stop()
}
