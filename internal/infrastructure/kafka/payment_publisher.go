package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
	"github.com/LavaJover/shvark-payment-service/internal/infrastructure/tracing"
	"github.com/segmentio/kafka-go"
)

const publishTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentEventPublisher writes terminal payment outcomes keyed by intent id,
// so every event of one intent lands on the same partition.
type PaymentEventPublisher struct {
	writer messageWriter
}

func NewPaymentEventPublisher(cfg KafkaConfig) (*PaymentEventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}

	return &PaymentEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Transport:    transport,
		},
	}, nil
}

func (p *PaymentEventPublisher) PublishPayment(ctx context.Context, event domain.PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode payment event: %w", err)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.IntentID),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	}); err != nil {
		return fmt.Errorf("failed to write payment event %s for %s: %w", event.Type, event.IntentID, err)
	}
	return nil
}

func (p *PaymentEventPublisher) Close() error {
	return p.writer.Close()
}
