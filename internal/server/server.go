// Package server wires the HTTP surface: routing, middleware, and the
// per-request translation pipeline.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/llmgate/llmgate/internal/auth"
	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/metrics"
	"github.com/llmgate/llmgate/internal/session"
	"github.com/llmgate/llmgate/internal/types"
	"github.com/llmgate/llmgate/internal/upstream"
)

// maxBodyBytes limits the size of incoming request bodies.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// upstreamDoer is the upstream client surface the pipeline depends on.
// Tests substitute a local mock.
type upstreamDoer interface {
	Stream(ctx context.Context, payload *types.UpstreamPayload) (io.ReadCloser, error)
}

// Server is the main HTTP server.
type Server struct {
	cfg        *config.Config
	up         upstreamDoer
	sessions   *session.Table
	httpServer *http.Server
}

// New creates a server with the production upstream client.
func New(cfg *config.Config) *Server {
	tm := auth.NewTokenManager(auth.NewOAuth2Config(config.ClientID(), config.OAuthIssuer()))
	uc := upstream.NewClient(tm, cfg.UpstreamURL, cfg.UpstreamIdleTimeout.Std())
	return NewWithUpstream(cfg, uc)
}

// NewWithUpstream creates a server over an explicit upstream client.
func NewWithUpstream(cfg *config.Config, up upstreamDoer) *Server {
	s := &Server{
		cfg:      cfg,
		up:       up,
		sessions: session.NewTable(),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped route handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	// OpenAI-compatible routes
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /v1/completions", s.handleCompletions)
	mux.HandleFunc("POST /v1/responses", s.handleResponses)
	mux.HandleFunc("GET /v1/models", s.handleListModels)

	// Ollama-compatible routes
	mux.HandleFunc("POST /api/chat", s.handleOllamaChat)
	mux.HandleFunc("GET /api/tags", s.handleOllamaTags)
	mux.HandleFunc("POST /api/show", s.handleOllamaShow)
	mux.HandleFunc("GET /api/version", s.handleOllamaVersion)

	// Observability
	mux.Handle("GET /metrics", metrics.Handler())

	// OPTIONS for CORS preflight
	mux.HandleFunc("OPTIONS /", s.handleOptions)

	return corsMiddleware(authMiddleware(s.cfg, logMiddleware(mux)))
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
