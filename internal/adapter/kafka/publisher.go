package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/weather-sync-service/internal/config"
	"github.com/couchcryptid/weather-sync-service/internal/domain"
)

// Publisher produces cycle events to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured event topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.ShutdownTimeout,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one event. The process exits right after a cycle, so the
// write is synchronous.
func (p *Publisher) Publish(ctx context.Context, ev domain.CycleEvent) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write cycle event: %w", err)
	}
	p.logger.Debug("cycle event published", "topic", p.writer.Topic, "id", ev.ID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a CycleEvent into a Kafka message keyed by
// location so every event for one server lands on one partition.
func serializeToMessage(ev domain.CycleEvent) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize cycle event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.Location.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(ev.Outcome)},
			{Key: "processed_at", Value: []byte(ev.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
