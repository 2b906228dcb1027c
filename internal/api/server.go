package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/fathomsearch/fathom/internal/breaker"
	"github.com/fathomsearch/fathom/internal/orchestrator"
	"github.com/fathomsearch/fathom/internal/registry"
	"github.com/fathomsearch/fathom/internal/telemetry"
)

// Server wraps the HTTP server and mux for the retrieval API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// ServerConfig wires a Server.
type ServerConfig struct {
	ListenAddress string
	Port          int
	APIToken      string // empty disables bearer auth on /api routes
	MaxBodyBytes  int64

	Orchestrator *orchestrator.Orchestrator
	Warmup       *orchestrator.Warmup
	Registry     *registry.Registry
	Breaker      *breaker.Breaker
	Telemetry    *telemetry.Telemetry
}

// NewServer creates the API server wired with all routes. Health and
// metrics stay public; the retrieve endpoint sits behind bearer auth
// when a token is configured.
func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	mux.Handle("GET /health", HandleHealth(cfg.Warmup, cfg.Registry, cfg.Breaker))
	mux.Handle("GET /metrics", cfg.Telemetry.Handler())

	authed := http.NewServeMux()
	authed.Handle("POST /api/v1/retrieve", HandleRetrieve(cfg.Orchestrator))

	var apiHandler http.Handler = RequestBodyLimitMiddleware(cfg.MaxBodyBytes, authed)
	if cfg.APIToken != "" {
		apiHandler = AuthMiddleware(cfg.APIToken, apiHandler)
	}
	mux.Handle("/api/", apiHandler)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.Port)),
		Handler: mux,
	}
	return &Server{httpServer: srv, mux: mux}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
