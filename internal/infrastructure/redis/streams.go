package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/redis/go-redis/v9"
)

const (
	EventStream = "payorders:events"
	DLQStream   = "payorders:events:dlq"
)

// StreamProducer appends lifecycle events to a Redis stream.
type StreamProducer struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamProducer(client redis.Cmdable, stream string) *StreamProducer {
	if stream == "" {
		stream = EventStream
	}
	return &StreamProducer{client: client, stream: stream, maxLen: 100_000}
}

// Publish writes evt to the stream.
func (p *StreamProducer) Publish(ctx context.Context, evt event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":   evt.ID.String(),
			"event":      string(evt.Name),
			"payment_id": evt.PaymentID.String(),
			"payload":    string(payload),
			"timestamp":  evt.OccurredAt.Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", evt.Name, err)
	}
	return nil
}

// PublishToDLQ parks a message the relay could not deliver.
func (p *StreamProducer) PublishToDLQ(ctx context.Context, msg redis.XMessage, reason string) error {
	values := map[string]any{
		"source_id": msg.ID,
		"reason":    reason,
		"timestamp": time.Now().Unix(),
	}
	if payload, ok := msg.Values["payload"]; ok {
		values["payload"] = payload
	}

	if _, err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: DLQStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}
	return nil
}

// DecodeEvent turns a stream message back into an event.
func DecodeEvent(msg redis.XMessage) (event.Event, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return event.Event{}, errors.New("stream message has no payload")
	}
	var evt event.Event
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		return event.Event{}, fmt.Errorf("decode event payload: %w", err)
	}
	return evt, nil
}

// StreamConsumer reads a stream through a consumer group.
type StreamConsumer struct {
	client        redis.Cmdable
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client redis.Cmdable,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}
