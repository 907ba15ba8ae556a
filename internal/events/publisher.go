// Package events publishes enrichment batch summaries to Kafka so downstream
// services can react to fresh citation metrics without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/observability"
)

// Message header names.
const (
	HeaderEventType     = "event_type"
	HeaderCorrelationID = "correlation_id"
	HeaderSource        = "source"
)

// ServiceName is stamped on every message in the source header.
const ServiceName = "citation-enrichment-service"

// Publisher delivers batch completion events.
type Publisher interface {
	PublishBatchCompleted(ctx context.Context, event *domain.BatchCompletedEvent) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives batch completion events.
	Topic string
	// BatchSize is the writer's maximum batch size.
	BatchSize int
	// BatchTimeout is how long the writer waits to fill a batch.
	BatchTimeout time.Duration
}

// KafkaPublisher writes JSON events keyed by batch id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "event_publisher").Str("topic", topic).Logger(),
	}
}

// PublishBatchCompleted serializes event and writes it synchronously.
func (p *KafkaPublisher) PublishBatchCompleted(ctx context.Context, event *domain.BatchCompletedEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(event.EventType)},
		{Key: HeaderSource, Value: []byte(ServiceName)},
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(id)})
	}

	msg := kafka.Message{
		Key:     []byte(event.BatchID.String()),
		Value:   payload,
		Headers: headers,
		Time:    event.CompletedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", event.EventType, err)
	}

	p.logger.Debug().
		Str("batch_id", event.BatchID.String()).
		Str("event_id", event.EventID.String()).
		Msg("published batch event")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards events. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishBatchCompleted(context.Context, *domain.BatchCompletedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)
