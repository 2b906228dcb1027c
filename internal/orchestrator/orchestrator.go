// Package orchestrator owns the per-request pipeline: validate, plan the
// budget, fan the query out across enabled lanes, collect whatever made
// it back before the global deadline, fuse, and emit telemetry. One
// goroutine per lane per request; the collector never blocks on a lane
// that blows its deadline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fathomsearch/fathom/internal/breaker"
	"github.com/fathomsearch/fathom/internal/executor"
	"github.com/fathomsearch/fathom/internal/fuse"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/registry"
	"github.com/fathomsearch/fathom/internal/telemetry"
)

// maxQueryBytes bounds the raw query text.
const maxQueryBytes = 8 << 10

// ErrInvalidQuery marks input validation failures; the API layer maps it
// to a 400.
var ErrInvalidQuery = errors.New("invalid query")

// errPlanInvariant signals a planner bug, surfaced as an internal error
// rather than a partial response.
var errPlanInvariant = errors.New("budget plan violates deadline invariant")

// Orchestrator executes retrieval requests.
type Orchestrator struct {
	registry *registry.Registry
	breaker  *breaker.Breaker
	exec     *executor.Executor
	tel      *telemetry.Telemetry
	weights  map[lane.QueryClass]fuse.Weights

	retrievalCap time.Duration
	fusedCap     int

	// now is injectable for tests.
	now func() time.Time
}

// Config wires an Orchestrator.
type Config struct {
	Registry     *registry.Registry
	Breaker      *breaker.Breaker
	Executor     *executor.Executor
	Telemetry    *telemetry.Telemetry
	Weights      map[lane.QueryClass]fuse.Weights // nil means defaults
	RetrievalCap time.Duration                    // 0 means uncapped
	FusedCap     int
	Now          func() time.Time // nil means time.Now
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	weights := cfg.Weights
	if weights == nil {
		weights = fuse.DefaultWeights()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	fusedCap := cfg.FusedCap
	if fusedCap <= 0 {
		fusedCap = 20
	}
	return &Orchestrator{
		registry:     cfg.Registry,
		breaker:      cfg.Breaker,
		exec:         cfg.Executor,
		tel:          cfg.Telemetry,
		weights:      weights,
		retrievalCap: cfg.RetrievalCap,
		fusedCap:     fusedCap,
		now:          now,
	}
}

// Retrieve runs one query across all enabled lanes and returns the fused
// response. The response is structurally complete even when every lane
// fails; only invalid input or a planner bug produce an error.
func (o *Orchestrator) Retrieve(ctx context.Context, q Query) (*FusedResponse, error) {
	if err := validate(q); err != nil {
		return nil, err
	}
	class := q.Class
	if class == "" {
		class = lane.ClassSimple
	}
	traceID := q.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	start := o.now()
	enabled, filtered := o.registry.EnabledLanes(q.Lanes)

	plan := PlanBudget(class, start, o.retrievalCap, enabled, o.registry)
	if !plan.valid() {
		log.Printf("[orchestrator] %s: plan invariant violated, refusing request", traceID)
		return nil, errPlanInvariant
	}

	results := make(map[lane.ID]lane.Result, len(enabled)+len(filtered))
	for _, id := range filtered {
		results[id] = lane.Disabled(id, "not_enabled")
	}

	// Snapshot breaker states for every lane the record will report,
	// filtered lanes included, so before/after fields are always paired.
	statesBefore := make(map[lane.ID]breaker.State, len(enabled)+len(filtered))
	for _, id := range enabled {
		statesBefore[id] = o.breaker.StateOf(id)
	}
	for _, id := range filtered {
		statesBefore[id] = o.breaker.StateOf(id)
	}

	fanCtx, cancel := context.WithDeadline(ctx, plan.GlobalDeadline)
	defer cancel()

	// Buffered to lane count so abandoned lanes never leak their goroutine.
	resCh := make(chan lane.Result, len(enabled))
	launched := 0
	for _, id := range enabled {
		if plan.ShouldSkip(o.now()) {
			results[id] = lane.Disabled(id, "budget_exhausted")
			continue
		}
		launched++
		go func(id lane.ID) {
			resCh <- o.exec.Run(fanCtx, id, q.Text, plan.PerLane[id], false)
		}(id)
	}

	budgetExceeded := false
collect:
	for received := 0; received < launched; {
		select {
		case r := <-resCh:
			results[r.Lane] = r
			received++
		case <-fanCtx.Done():
			budgetExceeded = errors.Is(fanCtx.Err(), context.DeadlineExceeded)
			break collect
		}
	}

	totalElapsed := o.now().Sub(start)
	// Lanes that never reported before the global deadline are timeouts
	// from the request's point of view, whatever they do later.
	for _, id := range enabled {
		if _, ok := results[id]; !ok {
			results[id] = lane.Timeout(id, totalElapsed.Milliseconds())
		}
	}

	evidence := fuse.Fuse(results, o.weights[class], o.fusedCap)

	resp := &FusedResponse{
		TraceID:        traceID,
		Class:          class,
		Evidence:       evidence,
		Lanes:          make(map[lane.ID]LaneSummary, len(results)),
		TotalElapsedMs: totalElapsed.Milliseconds(),
		BudgetExceeded: budgetExceeded,
	}
	for id, r := range results {
		resp.Lanes[id] = summarize(r)
	}

	o.emit(traceID, class, totalElapsed, budgetExceeded, results, statesBefore)

	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		// Caller went away; telemetry is already recorded.
		return nil, err
	}
	return resp, nil
}

func (o *Orchestrator) emit(traceID string, class lane.QueryClass, total time.Duration, exceeded bool, results map[lane.ID]lane.Result, statesBefore map[lane.ID]breaker.State) {
	rec := telemetry.RequestRecord{
		TraceID:        traceID,
		Class:          class,
		TotalElapsedMs: total.Milliseconds(),
		BudgetExceeded: exceeded,
		Lanes:          make(map[lane.ID]telemetry.LaneRecord, len(results)),
	}
	for id, r := range results {
		o.tel.ObserveLane(id, r.Status, time.Duration(r.ElapsedMs)*time.Millisecond)
		rec.Lanes[id] = telemetry.LaneRecord{
			Status:             r.Status,
			ElapsedMs:          r.ElapsedMs,
			ItemsReturned:      len(r.Items),
			CacheHit:           r.CacheHit,
			BreakerStateBefore: string(statesBefore[id]),
			BreakerStateAfter:  string(o.breaker.StateOf(id)),
		}
	}
	o.tel.ObserveRequest(total)
	o.tel.EmitRequest(rec)
}

func validate(q Query) error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuery)
	}
	if len(q.Text) > maxQueryBytes {
		return fmt.Errorf("%w: text exceeds %d bytes", ErrInvalidQuery, maxQueryBytes)
	}
	if q.Class != "" && !q.Class.IsValid() {
		return fmt.Errorf("%w: unknown class %q", ErrInvalidQuery, q.Class)
	}
	return nil
}
