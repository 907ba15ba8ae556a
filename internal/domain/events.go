package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants for published events.
const (
	EventTypeBatchCompleted = "citation_enrichment.batch_completed"
)

// BatchCompletedEvent summarises one enrichment batch for downstream consumers.
type BatchCompletedEvent struct {
	EventID        uuid.UUID `json:"event_id"`
	EventType      string    `json:"event_type"`
	BatchID        uuid.UUID `json:"batch_id"`
	Papers         int       `json:"papers"`
	Enriched       int       `json:"enriched"`
	CacheHits      int       `json:"cache_hits"`
	PrimarySuccess int       `json:"primary_success"`
	PrimaryFail    int       `json:"primary_fail"`
	FallbackUsed   int       `json:"fallback_used"`
	RateLimited    int       `json:"rate_limited"`
	DurationMs     int64     `json:"duration_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewBatchCompletedEvent creates an event stamped with a fresh event id.
func NewBatchCompletedEvent(batchID uuid.UUID, completedAt time.Time) *BatchCompletedEvent {
	return &BatchCompletedEvent{
		EventID:     uuid.New(),
		EventType:   EventTypeBatchCompleted,
		BatchID:     batchID,
		CompletedAt: completedAt.UTC(),
	}
}
