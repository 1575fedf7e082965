package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brojonat/soloquy/service/config"
	"github.com/brojonat/soloquy/service/db"
	"github.com/brojonat/soloquy/service/engine"
	"github.com/brojonat/soloquy/service/metrics"
	solanasvc "github.com/brojonat/soloquy/service/solana"
)

// Server represents the HTTP server for the agent service.
type Server struct {
	addr    string
	cfg     *config.Config
	engine  *engine.Engine
	ledger  *solanasvc.Client
	store   *db.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The store is optional - if nil, execution history endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, eng *engine.Engine, ledger *solanasvc.Client, store *db.Store, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		cfg:     cfg,
		engine:  eng,
		ledger:  ledger,
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Command pipeline routes
	mux.Handle("POST /api/v1/command", s.instrument("/api/v1/command", handleCommand(s.engine, s.logger)))
	mux.Handle("POST /api/v1/interpret", s.instrument("/api/v1/interpret", handleInterpret(s.engine, s.logger)))
	mux.Handle("POST /api/v1/confirm", s.instrument("/api/v1/confirm", handleConfirm(s.engine, s.logger)))
	mux.Handle("POST /api/v1/cancel", s.instrument("/api/v1/cancel", handleCancel(s.engine, s.logger)))

	// Wallet query routes
	mux.Handle("GET /api/v1/balance/{address}", s.instrument("/api/v1/balance", handleGetBalance(s.ledger, s.logger)))
	mux.Handle("GET /api/v1/history/{address}", s.instrument("/api/v1/history", handleGetHistory(s.ledger, s.logger)))

	// Audit trail routes (if audit store is configured)
	if s.store != nil {
		mux.Handle("GET /api/v1/executions/{session_id}", s.instrument("/api/v1/executions", handleListExecutions(s.store, s.logger)))
		s.logger.Info("audit trail endpoints enabled")
	} else {
		s.logger.Warn("audit store not configured, execution history endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// instrument wraps a handler with per-endpoint HTTP metrics.
func (s *Server) instrument(name string, h http.Handler) http.Handler {
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-ID")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
