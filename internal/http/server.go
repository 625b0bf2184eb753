package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/geekspace/arbiter/internal/config"
	"github.com/geekspace/arbiter/internal/http/middleware"
	"github.com/geekspace/arbiter/internal/metrics"
	"github.com/geekspace/arbiter/internal/observability"
)

// Server represents the HTTP server.
type Server struct {
	config  config.ServerConfig
	handler *Handler
	metrics *metrics.Registry
	cors    *config.CORSConfig
	srv     *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	serverCfg *config.ServerConfig,
	corsCfg *config.CORSConfig,
	handler *Handler,
	metricsReg *metrics.Registry,
) *Server {
	return &Server{
		config:  *serverCfg,
		handler: handler,
		metrics: metricsReg,
		cors:    corsCfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("/v1/chat", s.handler.HandleChat)
	mux.HandleFunc("/health", s.handler.HandleHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	// Apply middleware chain.
	chain := middleware.Chain(
		middleware.CORS(s.cors),
		middleware.Trace(),
	)

	// Create server with timeouts. WriteTimeout must cover the slow premium
	// path, hence the generous default.
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      chain(mux),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
