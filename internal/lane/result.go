package lane

import "time"

// Evidence is one retrieved item handed to fusion and, eventually, the
// synthesizer. Score is lane-local in [0,1]; fusion reconciles scales.
type Evidence struct {
	Lane      ID        `json:"lane"`
	SourceID  string    `json:"source_id"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Score     float64   `json:"score"`
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Status is the terminal outcome of one lane within one request.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusTimeout     Status = "timeout"
	StatusBreakerOpen Status = "breaker_open"
	StatusDisabled    Status = "disabled"
	StatusError       Status = "error"
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	ErrorTransport   ErrorKind = "transport"
	ErrorAuth        ErrorKind = "auth"
	ErrorRateLimited ErrorKind = "rate_limited"
	ErrorBadResponse ErrorKind = "bad_response"
	ErrorInternal    ErrorKind = "internal"
)

// Result is the tagged outcome of running one lane for one request.
// Only StatusSuccess carries evidence. ElapsedMs is measured by the
// executor's clock, never self-reported by the adapter.
type Result struct {
	Lane      ID         `json:"lane"`
	Status    Status     `json:"status"`
	Items     []Evidence `json:"items,omitempty"`
	ElapsedMs int64      `json:"elapsed_ms"`
	ErrKind   ErrorKind  `json:"error_kind,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	CacheHit  bool       `json:"cache_hit,omitempty"`
}

// Success builds a successful result.
func Success(id ID, items []Evidence, elapsedMs int64) Result {
	return Result{Lane: id, Status: StatusSuccess, Items: items, ElapsedMs: elapsedMs}
}

// Timeout builds a deadline-elapsed result.
func Timeout(id ID, elapsedMs int64) Result {
	return Result{Lane: id, Status: StatusTimeout, ElapsedMs: elapsedMs}
}

// BreakerOpen builds a result for a lane skipped by an open circuit.
func BreakerOpen(id ID) Result {
	return Result{Lane: id, Status: StatusBreakerOpen}
}

// Disabled builds a result for a lane that was never launched.
// Known reasons: "not_enabled", "budget_exhausted".
func Disabled(id ID, reason string) Result {
	return Result{Lane: id, Status: StatusDisabled, Reason: reason}
}

// Failure builds a classified error result.
func Failure(id ID, kind ErrorKind, elapsedMs int64) Result {
	return Result{Lane: id, Status: StatusError, ErrKind: kind, ElapsedMs: elapsedMs}
}
