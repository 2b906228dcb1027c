package orchestrator

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fathomsearch/fathom/internal/executor"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/registry"
)

// laneCanaries are cheap representative queries sent through the heavy
// lanes to pay cold-start costs (index handles, embedding pipelines)
// before real traffic arrives. The metered external lanes (web, news,
// markets) carry no canaries: a warmup pass must never bill a provider.
var laneCanaries = map[lane.ID]string{
	lane.Vector:  "distributed systems consensus",
	lane.KG:      "well known entity",
	lane.Keyword: "common term",
}

// Warmup drives canary queries through the executor at boot and,
// optionally, on a cron schedule. Canary runs are internal: they bypass
// the cache and never feed the circuit breakers.
type Warmup struct {
	exec     *executor.Executor
	registry *registry.Registry
	cron     *cron.Cron
	ready    atomic.Bool
}

// NewWarmup creates a Warmup.
func NewWarmup(exec *executor.Executor, reg *registry.Registry) *Warmup {
	return &Warmup{exec: exec, registry: reg}
}

// Ready reports whether the initial warmup pass has completed. Warmup
// failures are logged but never gate readiness; a cold lane is degraded,
// not down.
func (w *Warmup) Ready() bool {
	return w.ready.Load()
}

// Run executes one warmup pass across the enabled heavy lanes
// concurrently and marks the manager ready when the pass completes.
func (w *Warmup) Run(ctx context.Context) {
	enabled, _ := w.registry.EnabledLanes(lane.Heavy())

	var wg sync.WaitGroup
	for _, id := range enabled {
		cfg, ok := w.registry.Config(id)
		if !ok {
			continue
		}
		canary, ok := laneCanaries[id]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(id lane.ID, cfg registry.LaneConfig) {
			defer wg.Done()
			res := w.exec.Run(ctx, id, canary, time.Now().Add(cfg.Timeout), true)
			if res.Status != lane.StatusSuccess {
				log.Printf("[warmup] %s canary %s (%s)", id, res.Status, res.Reason)
				return
			}
			log.Printf("[warmup] %s warm in %dms", id, res.ElapsedMs)
		}(id, cfg)
	}
	wg.Wait()
	w.ready.Store(true)
}

// Start launches the initial warmup pass in the background and, when
// schedule is non-empty, a cron job that re-warms on that schedule.
func (w *Warmup) Start(ctx context.Context, schedule string) error {
	go w.Run(ctx)

	if schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { w.Run(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	w.cron = c
	log.Printf("[warmup] re-warm scheduled: %s", schedule)
	return nil
}

// Stop halts the re-warm schedule, waiting for an in-flight pass.
func (w *Warmup) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}
