package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/prediction-service/internal/models"
)

// Producer publishes prediction lifecycle events
type Producer struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewProducer creates a Kafka producer for the given topic
func NewProducer(brokers []string, topic string, logger zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		logger: logger.With().Str("component", "kafka_producer").Logger(),
	}
}

// PublishPredictionEvaluated publishes an evaluation result event, keyed
// by user ID so one user's events stay ordered.
func (p *Producer) PublishPredictionEvaluated(ctx context.Context, event *models.PredictionEvaluatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.Itoa(event.UserID)),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish evaluation event: %w", err)
	}

	p.logger.Debug().
		Int("prediction_id", event.PredictionID).
		Int("user_id", event.UserID).
		Msg("Published evaluation event")

	return nil
}

// Close closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
