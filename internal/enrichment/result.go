package enrichment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

// Outcome records how one paper in a batch was resolved.
type Outcome struct {
	// PaperID is the identifier as submitted.
	PaperID string `json:"paper_id"`

	// Resolution is cache, primary, fallback, unenriched or skipped.
	Resolution domain.Resolution `json:"resolution"`

	// Error classifies the last primary failure of an unenriched paper.
	Error domain.ErrorKind `json:"error,omitempty"`

	// Attempts is the number of primary calls made for the paper.
	Attempts int `json:"attempts,omitempty"`
}

// BatchResult is the detailed result of EnrichBatch.
type BatchResult struct {
	ID uuid.UUID `json:"batch_id"`

	// Papers holds enriched copies in input order.
	Papers []domain.PaperRef `json:"papers"`

	// Outcomes is parallel to Papers.
	Outcomes []Outcome `json:"outcomes"`

	// Stats counts only this batch.
	Stats StatsSnapshot `json:"stats"`

	Duration time.Duration `json:"-"`

	// Cancelled is set when the batch context ended before every paper ran.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Enriched returns the number of papers that received citation metrics.
func (r *BatchResult) Enriched() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Resolution.Enriched() {
			n++
		}
	}
	return n
}

// RateLimited reports whether the primary provider throttled any lookup.
func (r *BatchResult) RateLimited() bool {
	return r.Stats.RateLimited > 0
}

// Hint returns a short operator-facing explanation of a degraded batch, or
// an empty string when nothing needs attention.
func (r *BatchResult) Hint() string {
	switch {
	case r.Cancelled:
		return "batch was cancelled before every paper was processed; rerun to finish the remainder"
	case r.RateLimited():
		return fmt.Sprintf("the citation provider rate-limited %d of %d lookups; retry later or configure an API key",
			r.Stats.RateLimited, r.Stats.TotalAttempts)
	case r.Stats.PrimaryFail > 0 && r.Stats.PrimaryFail == r.Stats.TotalAttempts:
		return "no lookups succeeded against the citation provider; check connectivity and identifiers"
	default:
		return ""
	}
}

func (r *BatchResult) event(completedAt time.Time) *domain.BatchCompletedEvent {
	e := domain.NewBatchCompletedEvent(r.ID, completedAt)
	e.Papers = len(r.Papers)
	e.Enriched = r.Enriched()
	e.CacheHits = r.Stats.CacheHits
	e.PrimarySuccess = r.Stats.PrimarySuccess
	e.PrimaryFail = r.Stats.PrimaryFail
	e.FallbackUsed = r.Stats.FallbackUsed
	e.RateLimited = r.Stats.RateLimited
	e.DurationMs = r.Duration.Milliseconds()
	return e
}
