package mykafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

const (
	TopicUserEvents = "user_events"
	TopicBookEvents = "book_events"
	TopicLoanEvents = "loan_events"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(address []string) (*Producer, error) {
	if len(address) == 0 || address[0] == "" {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(address...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: w}, nil
}

// PublishEvent is a no-op on a zero-value Producer so handlers stay
// publishable-agnostic in tests and broker-less deployments.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	if p == nil || p.writer == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}

	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
