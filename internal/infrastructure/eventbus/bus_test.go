package eventbus_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newEvent(name event.Name) event.Event {
	return event.New(name, uuid.New(), time.Now(), nil)
}

func TestBus_DeliversToSubscribersInOrder(t *testing.T) {
	bus := eventbus.NewInMemoryBus(zerolog.Nop())
	var got []string

	bus.On(event.PaymentCreated, func(ctx context.Context, evt event.Event) error {
		got = append(got, "first")
		return nil
	})
	bus.On(event.PaymentCreated, func(ctx context.Context, evt event.Event) error {
		got = append(got, "second")
		return nil
	})
	bus.On(event.PaymentCompleted, func(ctx context.Context, evt event.Event) error {
		got = append(got, "other")
		return nil
	})
	bus.On(eventbus.All, func(ctx context.Context, evt event.Event) error {
		got = append(got, "wildcard:"+string(evt.Name))
		return nil
	})

	bus.Publish(context.Background(), newEvent(event.PaymentCreated))

	assert.Equal(t, []string{"first", "second", "wildcard:paymentCreated"}, got)
}

func TestBus_Off(t *testing.T) {
	bus := eventbus.NewInMemoryBus(zerolog.Nop())
	calls := 0
	id := bus.On(event.RefundCompleted, func(ctx context.Context, evt event.Event) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), newEvent(event.RefundCompleted))
	assert.True(t, bus.Off(event.RefundCompleted, id))
	assert.False(t, bus.Off(event.RefundCompleted, id))
	bus.Publish(context.Background(), newEvent(event.RefundCompleted))

	assert.Equal(t, 1, calls)
}

func TestBus_FailingSubscriberIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	bus := eventbus.NewInMemoryBus(zerolog.New(&buf))
	reached := false

	bus.On(event.PaymentFailed, func(ctx context.Context, evt event.Event) error {
		return errors.New("analytics down")
	})
	bus.On(event.PaymentFailed, func(ctx context.Context, evt event.Event) error {
		panic("boom")
	})
	bus.On(event.PaymentFailed, func(ctx context.Context, evt event.Event) error {
		reached = true
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), newEvent(event.PaymentFailed))
	})
	assert.True(t, reached)
	assert.Contains(t, buf.String(), "analytics down")
	assert.Contains(t, buf.String(), "subscriber panic: boom")
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := eventbus.NewInMemoryBus(zerolog.Nop())
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), newEvent(event.PaymentExpired))
	})
}
