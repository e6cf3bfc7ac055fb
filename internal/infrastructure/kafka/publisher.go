// Package kafka publishes outbox messages to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-settlement/internal/domain/outbox"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventName  = "event_type"
	HeaderMessageID  = "message_id"
	HeaderOccurredAt = "occurred_at"
)

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher writes one Kafka record per outbox message, keyed by aggregate id
// so events of one order land on one partition in order.
type Publisher struct {
	w *kafka.Writer
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Publisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (p *Publisher) Publish(ctx context.Context, m domoutbox.Message) error {
	if err := p.w.WriteMessages(ctx, toMessage(m)); err != nil {
		return fmt.Errorf("kafka: write %s: %w", m.Name, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

func toMessage(m domoutbox.Message) kafka.Message {
	return kafka.Message{
		Key:   []byte(m.Key),
		Value: m.Payload,
		Time:  m.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventName, Value: []byte(m.Name)},
			{Key: HeaderMessageID, Value: []byte(m.ID)},
			{Key: HeaderOccurredAt, Value: []byte(m.OccurredAt.UTC().Format(time.RFC3339Nano))},
		},
	}
}

var _ domoutbox.Publisher = (*Publisher)(nil)
