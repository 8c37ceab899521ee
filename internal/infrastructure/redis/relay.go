package redis

import (
	"context"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventSink receives relayed events.
type EventSink interface {
	Publish(ctx context.Context, evt event.Event) error
}

type messageSource interface {
	Read(ctx context.Context) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
}

type deadLetterWriter interface {
	PublishToDLQ(ctx context.Context, msg redis.XMessage, reason string) error
}

// Relay moves events from the Redis stream to a downstream sink. Messages that
// cannot be decoded go to the DLQ; sink failures leave the message pending so
// it is redelivered.
type Relay struct {
	source  messageSource
	dlq     deadLetterWriter
	sink    EventSink
	backoff time.Duration
	observe func(outcome string)
	logger  zerolog.Logger
}

func NewRelay(source *StreamConsumer, dlq *StreamProducer, sink EventSink, logger zerolog.Logger) *Relay {
	return newRelay(source, dlq, sink, logger)
}

func newRelay(source messageSource, dlq deadLetterWriter, sink EventSink, logger zerolog.Logger) *Relay {
	return &Relay{
		source:  source,
		dlq:     dlq,
		sink:    sink,
		backoff: time.Second,
		observe: func(string) {},
		logger:  logger.With().Str("component", "event_relay").Logger(),
	}
}

// OnMessage registers fn to be told the outcome of every message:
// "delivered", "dead_lettered" or "failed".
func (r *Relay) OnMessage(fn func(outcome string)) {
	if fn != nil {
		r.observe = fn
	}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Msg("event relay started")
	for {
		if ctx.Err() != nil {
			r.logger.Info().Msg("event relay stopped")
			return nil
		}
		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("relay batch failed")
			select {
			case <-ctx.Done():
			case <-time.After(r.backoff):
			}
		}
	}
}

// RelayOnce handles one batch and returns how many messages were delivered.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	msgs, err := r.source.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		return 0, err
	}

	delivered := 0
	for _, msg := range msgs {
		evt, err := DecodeEvent(msg)
		if err != nil {
			r.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("undecodable event, moving to DLQ")
			if dlqErr := r.dlq.PublishToDLQ(ctx, msg, err.Error()); dlqErr != nil {
				r.logger.Error().Err(dlqErr).Str("message_id", msg.ID).Msg("DLQ write failed")
				r.observe("failed")
				continue
			}
			_ = r.source.Ack(ctx, msg.ID)
			r.observe("dead_lettered")
			continue
		}

		if err := r.sink.Publish(ctx, evt); err != nil {
			r.logger.Error().Err(err).Str("event", string(evt.Name)).Str("message_id", msg.ID).Msg("sink publish failed")
			r.observe("failed")
			continue
		}
		if err := r.source.Ack(ctx, msg.ID); err != nil {
			r.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
			r.observe("failed")
			continue
		}
		r.observe("delivered")
		delivered++
	}
	return delivered, nil
}
