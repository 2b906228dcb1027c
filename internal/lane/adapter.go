package lane

import (
	"context"
	"errors"
	"net"
)

// Adapter is the narrow contract every lane implements. The deadline
// travels in ctx; adapters must observe it at every I/O boundary and
// release external connections on cancellation. Adapters must not panic;
// internal failures surface as typed errors (ideally *AdapterError).
type Adapter interface {
	Query(ctx context.Context, text string, topK int) ([]Evidence, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
// Used heavily in tests.
type AdapterFunc func(ctx context.Context, text string, topK int) ([]Evidence, error)

// Query implements Adapter.
func (f AdapterFunc) Query(ctx context.Context, text string, topK int) ([]Evidence, error) {
	return f(ctx, text, topK)
}

// AdapterError is a classified adapter failure.
type AdapterError struct {
	Kind ErrorKind
	Err  error
}

// Error implements error.
func (e *AdapterError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap exposes the underlying cause.
func (e *AdapterError) Unwrap() error { return e.Err }

// NewAdapterError wraps err with a classification.
func NewAdapterError(kind ErrorKind, err error) *AdapterError {
	return &AdapterError{Kind: kind, Err: err}
}

// ClassifyError maps an adapter error onto an ErrorKind. Typed
// *AdapterError values keep their kind; bare network failures map to
// transport; anything else is an adapter logic bug.
func ClassifyError(err error) ErrorKind {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ErrorTransport
	}
	return ErrorInternal
}
