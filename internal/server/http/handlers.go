package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/helixir/citation-enrichment-service/internal/cache"
	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/enrichment"
	"github.com/helixir/citation-enrichment-service/internal/observability"
)

const (
	defaultMaxBatchSize = 500
	maxRequestBodySize  = 8 << 20 // 8 MB limit for request bodies
)

// enrichRequest is the JSON request body for POST /enrichments.
type enrichRequest struct {
	Papers  []domain.PaperRef `json:"papers"`
	Options *optionsRequest   `json:"options,omitempty"`
}

// optionsRequest overrides the server's default options field by field.
type optionsRequest struct {
	Concurrency *int  `json:"concurrency,omitempty"`
	RetryCount  *int  `json:"retry_count,omitempty"`
	UseFallback *bool `json:"use_fallback,omitempty"`
	UseCache    *bool `json:"use_cache,omitempty"`
}

func (o *optionsRequest) merge(base enrichment.Options) enrichment.Options {
	if o == nil {
		return base
	}
	if o.Concurrency != nil {
		base.Concurrency = *o.Concurrency
	}
	if o.RetryCount != nil {
		base.RetryCount = *o.RetryCount
	}
	if o.UseFallback != nil {
		base.UseFallback = *o.UseFallback
	}
	if o.UseCache != nil {
		base.UseCache = *o.UseCache
	}
	return base
}

type enrichResponse struct {
	BatchID    string                   `json:"batch_id"`
	Papers     []domain.PaperRef        `json:"papers"`
	Outcomes   []enrichment.Outcome     `json:"outcomes"`
	Stats      enrichment.StatsSnapshot `json:"stats"`
	Enriched   int                      `json:"enriched"`
	Cancelled  bool                     `json:"cancelled,omitempty"`
	Hint       string                   `json:"hint,omitempty"`
	DurationMs int64                    `json:"duration_ms"`
}

type statsResponse struct {
	enrichment.StatsSnapshot
	PrimarySuccessRate float64 `json:"primary_success_rate"`
}

type clearExpiredResponse struct {
	Removed int `json:"removed"`
}

// createEnrichment handles POST /enrichments. The batch runs synchronously
// on the request context, so a disconnecting client cancels the remainder.
func (s *Server) createEnrichment(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body must be at most %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req enrichRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.Papers == nil {
		writeError(w, http.StatusBadRequest, "papers is required")
		return
	}
	if len(req.Papers) > s.maxBatch {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("papers must have at most %d entries", s.maxBatch))
		return
	}

	opts := req.Options.merge(s.defaults)
	res, err := s.enricher.EnrichBatch(r.Context(), req.Papers, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, enrichResponse{
		BatchID:    res.ID.String(),
		Papers:     res.Papers,
		Outcomes:   res.Outcomes,
		Stats:      res.Stats,
		Enriched:   res.Enriched(),
		Cancelled:  res.Cancelled,
		Hint:       res.Hint(),
		DurationMs: res.Duration.Milliseconds(),
	})
}

// getStats handles GET /stats.
func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	snap := s.enricher.Stats()
	writeJSON(w, http.StatusOK, statsResponse{StatsSnapshot: snap, PrimarySuccessRate: snap.PrimarySuccessRate()})
}

// resetStats handles DELETE /stats.
func (s *Server) resetStats(w http.ResponseWriter, r *http.Request) {
	s.enricher.ResetStats()
	logger := observability.WithRequestContext(r.Context(), s.logger)
	logger.Info().Msg("enrichment stats reset")
	w.WriteHeader(http.StatusNoContent)
}

// getCacheStats handles GET /cache/stats.
func (s *Server) getCacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// clearExpiredCache handles DELETE /cache/expired.
func (s *Server) clearExpiredCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, clearExpiredResponse{})
		return
	}
	removed, err := s.cache.ClearExpired(r.Context())
	s.metrics.RecordCacheEvictions(removed)
	if err != nil {
		s.logger.Error().Err(err).Int("removed", removed).Msg("failed to clear expired cache entries")
		writeError(w, http.StatusInternalServerError, "failed to clear expired cache entries")
		return
	}
	writeJSON(w, http.StatusOK, clearExpiredResponse{Removed: removed})
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
