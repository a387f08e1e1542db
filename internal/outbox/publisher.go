package outbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, events []domain.OutboxEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher keys messages by order id so every event for one order
// lands on the same partition in commit order.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []domain.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = toMessage(e)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(e domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(e.AggregateID.String()),
		Value: e.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID.String())},
			{Key: "event_type", Value: []byte(e.EventType)},
		},
	}
}

// LogPublisher stands in when no broker is configured; events are logged
// and marked dispatched so the table does not grow without bound.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events []domain.OutboxEvent) error {
	for _, e := range events {
		p.logger.Info("outbox event",
			"event_id", e.ID,
			"event_type", e.EventType,
			"order_id", e.AggregateID,
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
