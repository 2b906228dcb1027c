// Package telemetry owns the orchestrator's one-way observability surface:
// prometheus histograms/counters scraped via /metrics and a structured
// per-request record emitted to the process log. Emission never blocks
// lane execution and never fails a request.
package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/fathomsearch/fathom/internal/lane"
)

// LaneRecord is the per-lane slice of a request record.
type LaneRecord struct {
	Status             lane.Status `json:"status"`
	ElapsedMs          int64       `json:"elapsed_ms"`
	ItemsReturned      int         `json:"items_returned"`
	CacheHit           bool        `json:"cache_hit"`
	BreakerStateBefore string      `json:"breaker_state_before"`
	BreakerStateAfter  string      `json:"breaker_state_after"`
}

// RequestRecord is the structured record emitted once per request.
type RequestRecord struct {
	TraceID        string                 `json:"trace_id"`
	Class          lane.QueryClass        `json:"class"`
	TotalElapsedMs int64                  `json:"total_elapsed_ms"`
	BudgetExceeded bool                   `json:"budget_exceeded"`
	Lanes          map[lane.ID]LaneRecord `json:"lanes"`
}

// Telemetry aggregates counters/histograms and emits request records.
type Telemetry struct {
	registry *prometheus.Registry

	laneLatency        *prometheus.HistogramVec
	requestLatency     prometheus.Histogram
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec

	// Cheap per-lane request totals for the health surface, kept outside
	// prometheus so readers don't have to gather the registry.
	laneRequests *xsync.Map[lane.ID, *xsync.Counter]
}

// New creates a Telemetry with all collectors registered.
func New() *Telemetry {
	reg := prometheus.NewRegistry()

	t := &Telemetry{
		registry: reg,
		laneLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fathom_lane_latency_seconds",
			Help:    "Per-lane retrieval latency by terminal status.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 1.5, 2, 3, 5},
		}, []string{"lane", "status"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fathom_request_latency_seconds",
			Help:    "End-to-end retrieve latency.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5, 7, 10},
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fathom_cache_hits_total",
			Help: "Lane cache hits.",
		}, []string{"lane"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fathom_cache_misses_total",
			Help: "Lane cache misses.",
		}, []string{"lane"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fathom_breaker_transitions_total",
			Help: "Circuit breaker state transitions.",
		}, []string{"lane", "from", "to"}),
		laneRequests: xsync.NewMap[lane.ID, *xsync.Counter](),
	}

	reg.MustRegister(
		t.laneLatency,
		t.requestLatency,
		t.cacheHits,
		t.cacheMisses,
		t.breakerTransitions,
	)
	return t
}

// ObserveLane records one lane outcome.
func (t *Telemetry) ObserveLane(id lane.ID, status lane.Status, elapsed time.Duration) {
	t.laneLatency.WithLabelValues(string(id), string(status)).Observe(elapsed.Seconds())
	c, _ := t.laneRequests.LoadOrCompute(id, func() (*xsync.Counter, bool) {
		return xsync.NewCounter(), false
	})
	c.Inc()
}

// ObserveRequest records the end-to-end latency of one request.
func (t *Telemetry) ObserveRequest(elapsed time.Duration) {
	t.requestLatency.Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss for a lane.
func (t *Telemetry) ObserveCache(id lane.ID, hit bool) {
	if hit {
		t.cacheHits.WithLabelValues(string(id)).Inc()
	} else {
		t.cacheMisses.WithLabelValues(string(id)).Inc()
	}
}

// ObserveBreakerTransition records a circuit state change.
func (t *Telemetry) ObserveBreakerTransition(id lane.ID, from, to string) {
	t.breakerTransitions.WithLabelValues(string(id), from, to).Inc()
}

// LaneRequestCount returns the total lane executions observed for a lane.
func (t *Telemetry) LaneRequestCount(id lane.ID) int64 {
	c, ok := t.laneRequests.Load(id)
	if !ok {
		return 0
	}
	return c.Value()
}

// EmitRequest writes the structured per-request record to the log.
// Any marshal failure is swallowed; telemetry never fails a request.
func (t *Telemetry) EmitRequest(rec RequestRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[telemetry] record emission panic: %v", r)
		}
	}()
	raw, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[telemetry] record marshal failed for trace %s: %v", rec.TraceID, err)
		return
	}
	log.Printf("[telemetry] request %s", raw)
}

// Handler returns the /metrics scrape handler.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
