package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/quantoshi/hedgefolio/internal/api/handler/api"
	"github.com/quantoshi/hedgefolio/internal/api/response"
	"github.com/quantoshi/hedgefolio/internal/core"
	"github.com/quantoshi/hedgefolio/internal/metrics"
)

// Server is the HTTP front end for backtests, projections, and run history.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	MetricsPath string
}

// Handlers bundles the route handlers the server exposes.
type Handlers struct {
	Backtest   *handler.BacktestHandler
	Scenario   *handler.ScenarioHandler
	Allocation *handler.AllocationHandler
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, h Handlers, registry *metrics.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	var root http.Handler = mux
	if registry != nil {
		root = metrics.HTTPMiddleware(registry)(mux)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
	}

	s.setupRoutes(cfg, h, registry)
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, h Handlers, registry *metrics.Registry) {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/backtest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.Backtest.Create(w, r)
	})
	s.mux.HandleFunc("/api/backtest/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/backtest/")
		switch {
		case id == "latest":
			h.Backtest.Latest(w, r)
		case id == "" || strings.Contains(id, "/"):
			response.Error(w, http.StatusNotFound, core.ErrRunNotFound)
		default:
			h.Backtest.GetStatus(w, r, id)
		}
	})
	s.mux.HandleFunc("/api/scenario", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.Scenario.Project(w, r)
	})
	s.mux.HandleFunc("/api/allocation", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.Allocation.Compute(w, r)
	})

	if registry != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle(path, promhttp.HandlerFor(registry.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
