// Package web provides the HTTP API and status page for the staging pipeline.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/config"
	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/JonMunkholm/stagepipe/internal/pipeline"
	mw "github.com/JonMunkholm/stagepipe/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline is what the HTTP layer needs from the pipeline service.
type Pipeline interface {
	ExtractCSVReader(ctx context.Context, r io.Reader, source string) (int, error)
	ExtractAPI(ctx context.Context, url string, params map[string]string, source string) (int, error)
	Transform(ctx context.Context, rawID *int64) (int, error)
	Load(ctx context.Context, processedID *int64) (int, error)
	Run(ctx context.Context) (pipeline.RunResult, error)
	Reset(ctx context.Context) (pipeline.ResetResult, error)
	Status(ctx context.Context) (database.StageCounts, error)
	Runs(ctx context.Context, limit int) ([]database.EtlRunMetric, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the pipeline API.
type Server struct {
	pipeline  Pipeline
	cfg       config.ServerConfig
	opTimeout time.Duration
	limiter   *OpLimiter
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates a new Server instance.
func NewServer(p Pipeline, cfg config.ServerConfig, opTimeout time.Duration) *Server {
	s := &Server{
		pipeline:  p,
		cfg:       cfg,
		opTimeout: opTimeout,
		limiter:   NewOpLimiter(cfg.MaxConcurrentOps, DefaultMaxWaitTime),
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(mw.Metrics)
	s.router.Use(middleware.Recoverer)

	// Security hardening
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleStatusPage)

	// Probes
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		// Read-only
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleRuns)

		// Pipeline operations
		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth(s.cfg.APIKeys))

			r.Post("/extract/csv", s.handleExtractCSV)
			r.Post("/extract/api", s.handleExtractAPI)
			r.Post("/transform", s.handleTransform)
			r.Post("/load", s.handleLoad)
			r.Post("/run", s.handleRun)
			r.Post("/reset", s.handleReset)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and waits for running operations.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		// The status page is static HTML with inline styles only.
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
