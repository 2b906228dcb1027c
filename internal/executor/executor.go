// Package executor runs a single lane adapter under its deadline, turning
// every possible outcome (hit, success, timeout, classified error, open
// circuit) into a typed lane.Result. Adapters are the only code that
// touches external APIs; the executor is the only code that reads clocks.
package executor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/fathomsearch/fathom/internal/breaker"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/registry"
	"github.com/fathomsearch/fathom/internal/rescache"
	"github.com/fathomsearch/fathom/internal/telemetry"
)

// Executor coordinates breaker, cache, and adapter for one lane call.
type Executor struct {
	registry *registry.Registry
	breaker  *breaker.Breaker
	cache    *rescache.Cache
	tel      *telemetry.Telemetry
	adapters map[lane.ID]lane.Adapter

	// now is injectable for tests.
	now func() time.Time
}

// Config wires an Executor.
type Config struct {
	Registry  *registry.Registry
	Breaker   *breaker.Breaker
	Cache     *rescache.Cache
	Telemetry *telemetry.Telemetry
	Adapters  map[lane.ID]lane.Adapter
	Now       func() time.Time // nil means time.Now
}

// New creates an Executor.
func New(cfg Config) *Executor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		registry: cfg.Registry,
		breaker:  cfg.Breaker,
		cache:    cfg.Cache,
		tel:      cfg.Telemetry,
		adapters: cfg.Adapters,
		now:      now,
	}
}

// adapterOutcome carries the adapter goroutine's result across the
// deadline select.
type adapterOutcome struct {
	items []lane.Evidence
	err   error
}

// Run executes one lane for one request. Order within the call:
// cache-check → breaker-check → adapter-call → breaker-update → cache-put.
// The cache is consulted before the breaker so cached evidence keeps
// serving while a lane's circuit is open. internal marks warmup canaries:
// they bypass the cache and never feed the breaker.
func (e *Executor) Run(ctx context.Context, id lane.ID, text string, deadline time.Time, internal bool) lane.Result {
	cfg, ok := e.registry.Config(id)
	if !ok {
		return lane.Disabled(id, "not_enabled")
	}
	start := e.now()

	fp := lane.FingerprintFor(text, id, cfg.TopK)
	if !internal {
		if cached, hit := e.cache.Get(fp); hit {
			e.tel.ObserveCache(id, true)
			cached.CacheHit = true
			cached.ElapsedMs = e.sinceMs(start)
			return cached
		}
		e.tel.ObserveCache(id, false)

		if e.breaker.Before(id) == breaker.Reject {
			return lane.BreakerOpen(id)
		}
	}

	adapter, ok := e.adapters[id]
	if !ok {
		// Registry and adapter set disagree; treat as an adapter bug, not
		// a crash.
		if !internal {
			e.breaker.OnFailure(id)
		}
		return lane.Failure(id, lane.ErrorInternal, e.sinceMs(start))
	}

	actx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	outcome := make(chan adapterOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- adapterOutcome{err: lane.NewAdapterError(lane.ErrorInternal, fmt.Errorf("adapter panic: %v", r))}
			}
		}()
		items, err := adapter.Query(actx, text, cfg.TopK)
		outcome <- adapterOutcome{items: items, err: err}
	}()

	select {
	case out := <-outcome:
		elapsed := e.sinceMs(start)
		if out.err != nil {
			kind := lane.ClassifyError(out.err)
			if actx.Err() != nil {
				// The adapter surfaced its own cancellation; report it as
				// the deadline it actually was.
				if !internal {
					e.breaker.OnFailure(id)
				}
				return lane.Timeout(id, elapsed)
			}
			log.Printf("[executor] %s adapter error (%s): %v", id, kind, out.err)
			if !internal {
				e.breaker.OnFailure(id)
			}
			return lane.Failure(id, kind, elapsed)
		}

		items := truncateTopK(out.items, cfg.TopK)
		res := lane.Success(id, items, elapsed)
		if !internal {
			e.breaker.OnSuccess(id)
			e.cache.Put(fp, res, cfg.TTL)
		}
		return res

	case <-actx.Done():
		// Abandon the adapter goroutine; cancellation is cooperative and
		// the buffered channel lets it exit whenever it notices.
		elapsed := e.sinceMs(start)
		if !internal {
			e.breaker.OnFailure(id)
		}
		return lane.Timeout(id, elapsed)
	}
}

func (e *Executor) sinceMs(start time.Time) int64 {
	return e.now().Sub(start).Milliseconds()
}

// truncateTopK caps items at topK, stable-sorted by lane-local score
// descending so truncation is deterministic.
func truncateTopK(items []lane.Evidence, topK int) []lane.Evidence {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	if topK > 0 && len(items) > topK {
		items = items[:topK]
	}
	return items
}
