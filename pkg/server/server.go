// Package server wires the JSON-RPC engine, the REST surface, and the
// SSE stream into one HTTP server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/lespauI/mcp-ios-agent/pkg/auth"
	"github.com/lespauI/mcp-ios-agent/pkg/config"
	"github.com/lespauI/mcp-ios-agent/pkg/engine"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
	"github.com/lespauI/mcp-ios-agent/pkg/observability"
	"github.com/lespauI/mcp-ios-agent/pkg/resource"
	"github.com/lespauI/mcp-ios-agent/pkg/session"
	"github.com/lespauI/mcp-ios-agent/pkg/sse"
)

// Server is the HTTP front of the tool server.
type Server struct {
	cfg       *config.Config
	engine    *engine.Engine
	sessions  *session.Manager
	resources *resource.Manager
	events    *sse.Manager
	auth      *auth.Service
	metrics   *observability.Metrics
	tracker   *observability.Tracker
	tracing   *observability.TracingProvider
	logger    logging.Logger

	httpServer *http.Server
}

// Options carries the constructed components the server serves.
type Options struct {
	Config    *config.Config
	Engine    *engine.Engine
	Sessions  *session.Manager
	Resources *resource.Manager
	Events    *sse.Manager
	Auth      *auth.Service
	Metrics   *observability.Metrics
	Tracker   *observability.Tracker
	Tracing   *observability.TracingProvider
	Logger    logging.Logger
}

// New builds the server and its route table.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:       opts.Config,
		engine:    opts.Engine,
		sessions:  opts.Sessions,
		resources: opts.Resources,
		events:    opts.Events,
		auth:      opts.Auth,
		metrics:   opts.Metrics,
		tracker:   opts.Tracker,
		tracing:   opts.Tracing,
		logger:    logger.WithFields(logging.String("component", "server")),
	}
	s.httpServer = &http.Server{
		Addr:         opts.Config.Addr(),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped route table, exposed for
// tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	prefix := s.cfg.APIPrefix
	guard := auth.NewMiddleware(s.auth, s.cfg.APIKeyHeader, s.cfg.AuthEnabled)

	// JSON-RPC surface. Protocol errors ride inside the envelope, so
	// the route always answers 200.
	mux.Handle("POST "+prefix+"/mcp/jsonrpc",
		guard.RequireRPC(auth.RoleUser, http.HandlerFunc(s.handleJSONRPC)))

	// SSE stream and the session-bootstrap endpoint.
	sseHandler := sse.NewHandler(s.events, int(s.cfg.SSERetryTimeout.Milliseconds()), s.logger,
		func(r *http.Request) string { return r.PathValue("client") })
	mux.Handle("GET "+prefix+"/mcp/events", guard.Require(auth.RoleUser, sseHandler))
	mux.Handle("GET "+prefix+"/mcp/events/{client}", guard.Require(auth.RoleUser, sseHandler))
	mux.Handle("POST "+prefix+"/mcp/connect",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleConnect)))

	// Session management.
	mux.Handle("POST "+prefix+"/sessions",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleSessionCreate)))
	mux.Handle("GET "+prefix+"/sessions",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleSessionList)))
	mux.Handle("GET "+prefix+"/sessions/{id}",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleSessionGet)))
	mux.Handle("PATCH "+prefix+"/sessions/{id}",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleSessionUpdate)))
	mux.Handle("DELETE "+prefix+"/sessions/{id}",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleSessionDelete)))
	mux.Handle("POST "+prefix+"/sessions/{id}/heartbeat",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleSessionHeartbeat)))

	// Resource storage.
	mux.Handle("POST "+prefix+"/resources",
		guard.Require(auth.RoleDeveloper, http.HandlerFunc(s.handleResourceStore)))
	mux.Handle("GET "+prefix+"/resources",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleResourceList)))
	mux.Handle("GET "+prefix+"/resources/{type}/{id}",
		guard.Require(auth.RoleUser, http.HandlerFunc(s.handleResourceGet)))
	mux.Handle("DELETE "+prefix+"/resources/{type}/{id}",
		guard.Require(auth.RoleDeveloper, http.HandlerFunc(s.handleResourceDelete)))

	// API key management, admin only.
	mux.Handle("POST "+prefix+"/auth/keys",
		guard.Require(auth.RoleAdmin, http.HandlerFunc(s.handleKeyCreate)))
	mux.Handle("GET "+prefix+"/auth/keys",
		guard.Require(auth.RoleAdmin, http.HandlerFunc(s.handleKeyList)))
	mux.Handle("DELETE "+prefix+"/auth/keys",
		guard.Require(auth.RoleAdmin, http.HandlerFunc(s.handleKeyRevoke)))

	// Telemetry.
	mux.Handle("GET "+prefix+"/telemetry/operations",
		guard.Require(auth.RoleDeveloper, http.HandlerFunc(s.handleOperations)))
	mux.Handle("GET "+prefix+"/telemetry/summary",
		guard.Require(auth.RoleDeveloper, http.HandlerFunc(s.handleSummary)))

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = s.observe(handler)
	handler = s.recover(handler)
	handler = s.trace(handler)
	handler = s.cors(handler)
	handler = s.requestID(handler)
	return handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Server listening", logging.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Server shutting down")
	return s.httpServer.Shutdown(ctx)
}
