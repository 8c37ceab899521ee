package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/rs/zerolog"
)

// All subscribes a handler to every event name.
const All event.Name = "*"

type HandlerFunc func(ctx context.Context, evt event.Event) error

// SubscriptionID identifies a handler registration for Off.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler HandlerFunc
}

// InMemoryBus fans events out synchronously to subscribers. A failing or
// panicking subscriber is logged and never affects the publisher or the
// other subscribers.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[event.Name][]subscription
	nextID   atomic.Uint64
	logger   zerolog.Logger
}

func NewInMemoryBus(logger zerolog.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[event.Name][]subscription),
		logger:   logger.With().Str("component", "eventbus").Logger(),
	}
}

// On registers handler for name and returns its subscription id.
func (b *InMemoryBus) On(name event.Name, handler HandlerFunc) SubscriptionID {
	id := SubscriptionID(b.nextID.Add(1))

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: handler})
	return id
}

// Off removes a registration. It reports whether anything was removed.
func (b *InMemoryBus) Off(name event.Name, id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish delivers evt to the handlers registered for its name, then to
// wildcard handlers, in registration order.
func (b *InMemoryBus) Publish(ctx context.Context, evt event.Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.handlers[evt.Name])+len(b.handlers[All]))
	subs = append(subs, b.handlers[evt.Name]...)
	subs = append(subs, b.handlers[All]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.deliver(ctx, s, evt); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", string(evt.Name)).
				Str("payment_id", evt.PaymentID.String()).
				Uint64("subscription", uint64(s.id)).
				Msg("event subscriber failed")
		}
	}
}

func (b *InMemoryBus) deliver(ctx context.Context, s subscription, evt event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}
