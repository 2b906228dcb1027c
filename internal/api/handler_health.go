package api

import (
	"net/http"

	"github.com/fathomsearch/fathom/internal/breaker"
	"github.com/fathomsearch/fathom/internal/buildinfo"
	"github.com/fathomsearch/fathom/internal/lane"
	"github.com/fathomsearch/fathom/internal/orchestrator"
	"github.com/fathomsearch/fathom/internal/registry"
)

// LaneHealth is the per-lane slice of the health report.
type LaneHealth struct {
	Enabled      bool   `json:"enabled"`
	BreakerState string `json:"breaker_state"`
}

// HealthResponse is the health report: process readiness plus the
// enablement and circuit state of every known lane.
type HealthResponse struct {
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Lanes     map[lane.ID]LaneHealth `json:"lanes"`
}

// HandleHealth serves GET /health. Always 200; readiness and per-lane
// state are data, not status codes, so degraded deployments stay
// observable through the same probe.
func HandleHealth(warmup *orchestrator.Warmup, reg *registry.Registry, br *breaker.Breaker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Ready:     warmup.Ready(),
			Version:   buildinfo.Version,
			GitCommit: buildinfo.GitCommit,
			Lanes:     make(map[lane.ID]LaneHealth, len(lane.All())),
		}
		for _, id := range lane.All() {
			cfg, _ := reg.Config(id)
			resp.Lanes[id] = LaneHealth{
				Enabled:      cfg.Enabled,
				BreakerState: string(br.StateOf(id)),
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	})
}
