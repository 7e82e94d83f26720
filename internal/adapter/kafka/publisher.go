// Package kafka publishes resolution outcomes to a Kafka topic as optional
// telemetry. The daemon works identically without it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/whereami/internal/domain"
)

// Publisher produces one message per resolution cycle. It implements
// resolver.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the telemetry topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and writes one resolution outcome.
func (p *Publisher) Publish(ctx context.Context, res domain.LocationResult) error {
	msg, err := serializeToMessage(res)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a LocationResult into a Kafka message keyed by
// resolution method so consumers can partition by provider kind.
func serializeToMessage(res domain.LocationResult) (kafkago.Message, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize location result: %w", err)
	}
	outcome := "failure"
	if res.Success {
		outcome = "success"
	}
	return kafkago.Message{
		Key:   []byte(res.Method),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "outcome", Value: []byte(outcome)},
			{Key: "observed_at", Value: []byte(res.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}
