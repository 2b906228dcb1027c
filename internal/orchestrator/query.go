package orchestrator

import (
	"github.com/fathomsearch/fathom/internal/lane"
)

// Query is one retrieval request.
type Query struct {
	// Text is the raw query text. Required, at most 8 KiB.
	Text string `json:"text"`
	// Class selects the budget profile and fusion weights. Empty means
	// simple.
	Class lane.QueryClass `json:"class,omitempty"`
	// TraceID correlates logs and telemetry; generated when empty.
	TraceID string `json:"trace_id,omitempty"`
	// Lanes restricts the fan-out to a subset. Empty means all enabled
	// lanes. Disabled or unknown entries are reported, never fatal.
	Lanes []lane.ID `json:"lanes,omitempty"`
}

// LaneSummary is the per-lane slice of a response.
type LaneSummary struct {
	Status        lane.Status `json:"status"`
	ElapsedMs     int64       `json:"elapsed_ms"`
	ItemsReturned int         `json:"items_returned"`
	CacheHit      bool        `json:"cache_hit,omitempty"`
	ErrorKind     string      `json:"error_kind,omitempty"`
	Reason        string      `json:"reason,omitempty"`
}

// FusedResponse is the terminal shape of one retrieval: the ranked
// evidence plus a summary for every lane that was in play. It is always
// structurally complete, even when every lane failed.
type FusedResponse struct {
	TraceID        string                  `json:"trace_id"`
	Class          lane.QueryClass         `json:"class"`
	Evidence       []lane.Evidence         `json:"evidence"`
	Lanes          map[lane.ID]LaneSummary `json:"lanes"`
	TotalElapsedMs int64                   `json:"total_elapsed_ms"`
	BudgetExceeded bool                    `json:"budget_exceeded"`
}

func summarize(r lane.Result) LaneSummary {
	return LaneSummary{
		Status:        r.Status,
		ElapsedMs:     r.ElapsedMs,
		ItemsReturned: len(r.Items),
		CacheHit:      r.CacheHit,
		ErrorKind:     string(r.ErrKind),
		Reason:        r.Reason,
	}
}
