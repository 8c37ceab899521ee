package eventbus

import (
	"context"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/rs/zerolog"
)

// Sink receives events that leave the process, e.g. a Redis stream or a Kafka topic.
type Sink interface {
	Publish(ctx context.Context, evt event.Event) error
}

// Forward subscribes sink to every event on the bus. Sink errors are logged
// by the bus like any other subscriber failure.
func (b *InMemoryBus) Forward(sink Sink) SubscriptionID {
	return b.On(All, sink.Publish)
}

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "event_sink").Logger()}
}

func (s *LogSink) Publish(_ context.Context, evt event.Event) error {
	s.logger.Info().
		Str("event_id", evt.ID.String()).
		Str("event", string(evt.Name)).
		Str("payment_id", evt.PaymentID.String()).
		Time("occurred_at", evt.OccurredAt).
		Interface("data", evt.Data).
		Msg("payment event")
	return nil
}
