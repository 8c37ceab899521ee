package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/infrastructure/config"
	"github.com/cassiomorais/payorders/pkg/retry"
	"github.com/rs/zerolog"
)

// Producer publishes lifecycle events to a Kafka topic, keyed by payment id so
// every event of one payment lands on the same partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewSaramaConfig returns the producer settings used in production.
func NewSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// NewProducer connects to the brokers, retrying while they come up.
func NewProducer(ctx context.Context, cfg config.KafkaConfig, logger zerolog.Logger) (*Producer, error) {
	logger = logger.With().Str("component", "kafka_producer").Logger()
	saramaCfg := NewSaramaConfig(cfg.ClientID)

	producer, err := retry.DoWithResult(ctx, retry.Config{
		MaxAttempts:  10,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		OnRetry: func(n uint, err error) {
			logger.Warn().Err(err).Uint("attempt", n+1).Msg("waiting for Kafka")
		},
	}, func() (sarama.SyncProducer, error) {
		return sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("Kafka producer initialized")
	return NewProducerFrom(producer, cfg.Topic, logger), nil
}

// NewProducerFrom wraps an existing sync producer.
func NewProducerFrom(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *Producer {
	return &Producer{producer: producer, topic: topic, logger: logger}
}

// Publish sends evt and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, evt event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Name, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.PaymentID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(evt.Name)},
			{Key: []byte("event_id"), Value: []byte(evt.ID.String())},
		},
		Timestamp: evt.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s to Kafka: %w", evt.Name, err)
	}

	p.logger.Debug().
		Str("event", string(evt.Name)).
		Str("payment_id", evt.PaymentID.String()).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("published event")
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
