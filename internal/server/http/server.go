// Package httpserver provides the HTTP REST API for the citation enrichment service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-enrichment-service/internal/cache"
	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/enrichment"
	"github.com/helixir/citation-enrichment-service/internal/observability"
)

// readinessTimeout bounds each readiness probe.
const readinessTimeout = 2 * time.Second

// Enricher is the orchestrator surface used by the HTTP server.
type Enricher interface {
	EnrichBatch(ctx context.Context, papers []domain.PaperRef, opts enrichment.Options) (*enrichment.BatchResult, error)
	Stats() enrichment.StatsSnapshot
	ResetStats()
}

// CacheAdmin exposes cache maintenance operations.
type CacheAdmin interface {
	Stats() cache.Stats
	ClearExpired(ctx context.Context) (int, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck = func(ctx context.Context) error

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	enricher   Enricher
	cache      CacheAdmin
	metrics    *observability.Metrics
	checks     map[string]ReadinessCheck
	defaults   enrichment.Options
	maxBatch   int
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxBatchSize caps the number of papers in one request.
	MaxBatchSize int

	// Defaults fill options the request leaves out.
	Defaults enrichment.Options
}

// Dependencies are the collaborators of the server. Cache, Metrics and
// Checks are optional.
type Dependencies struct {
	Enricher Enricher
	Cache    CacheAdmin
	Metrics  *observability.Metrics
	Checks   map[string]ReadinessCheck
	Logger   zerolog.Logger
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}
	s := &Server{
		enricher: deps.Enricher,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		checks:   deps.Checks,
		defaults: cfg.Defaults,
		maxBatch: cfg.MaxBatchSize,
		logger:   deps.Logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requestLoggerMiddleware(s.logger))

		r.Post("/enrichments", s.createEnrichment)

		r.Get("/stats", s.getStats)
		r.Delete("/stats", s.resetStats)

		r.Get("/cache/stats", s.getCacheStats)
		r.Delete("/cache/expired", s.clearExpiredCache)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler runs every registered dependency check.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{"status": "ready"}
	code := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := s.checks[name](ctx)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			status[name] = "unhealthy"
			status["status"] = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "healthy"
	}
	writeJSON(w, code, status)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
