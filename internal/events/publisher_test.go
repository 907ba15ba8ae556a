package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/observability"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleEvent() *domain.BatchCompletedEvent {
	event := domain.NewBatchCompletedEvent(uuid.New(), time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	event.Papers = 3
	event.Enriched = 3
	event.CacheHits = 2
	event.PrimaryFail = 1
	event.FallbackUsed = 1
	event.DurationMs = 1500
	return event
}

func TestKafkaPublisher_PublishBatchCompleted(t *testing.T) {
	t.Run("writes keyed json with headers", func(t *testing.T) {
		w := &fakeWriter{}
		p := newKafkaPublisher(w, "events.citation_enrichment", zerolog.Nop())
		event := sampleEvent()

		ctx := observability.WithRequestID(context.Background(), "corr-1")
		require.NoError(t, p.PublishBatchCompleted(ctx, event))
		require.Len(t, w.messages, 1)

		msg := w.messages[0]
		assert.Equal(t, event.BatchID.String(), string(msg.Key))
		assert.Equal(t, event.CompletedAt, msg.Time)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, domain.EventTypeBatchCompleted, decoded["event_type"])
		assert.Equal(t, float64(2), decoded["cache_hits"])
		assert.Equal(t, float64(1), decoded["fallback_used"])
		assert.Equal(t, float64(1500), decoded["duration_ms"])

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, domain.EventTypeBatchCompleted, headers[HeaderEventType])
		assert.Equal(t, ServiceName, headers[HeaderSource])
		assert.Equal(t, "corr-1", headers[HeaderCorrelationID])
	})

	t.Run("omits correlation header without request id", func(t *testing.T) {
		w := &fakeWriter{}
		p := newKafkaPublisher(w, "topic", zerolog.Nop())

		require.NoError(t, p.PublishBatchCompleted(context.Background(), sampleEvent()))
		for _, h := range w.messages[0].Headers {
			assert.NotEqual(t, HeaderCorrelationID, h.Key)
		}
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("leader not available")}
		p := newKafkaPublisher(w, "topic", zerolog.Nop())

		err := p.PublishBatchCompleted(context.Background(), sampleEvent())
		require.Error(t, err)
		assert.Contains(t, err.Error(), domain.EventTypeBatchCompleted)
		assert.Contains(t, err.Error(), "leader not available")
	})

	t.Run("rejects nil event", func(t *testing.T) {
		p := newKafkaPublisher(&fakeWriter{}, "topic", zerolog.Nop())
		assert.Error(t, p.PublishBatchCompleted(context.Background(), nil))
	})
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "topic", zerolog.Nop())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher(Config{
		Brokers:      []string{"localhost:9092"},
		Topic:        "events.citation_enrichment",
		BatchSize:    10,
		BatchTimeout: 10 * time.Millisecond,
	}, zerolog.Nop())

	writer, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "events.citation_enrichment", writer.Topic)
	assert.Equal(t, 10, writer.BatchSize)
	require.NoError(t, p.Close())
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishBatchCompleted(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}
