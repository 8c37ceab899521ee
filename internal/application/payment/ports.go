package payment

import (
	"context"

	"github.com/cassiomorais/payorders/internal/domain/event"
)

// Locker serializes mutations of a single payment. TryLock must not block:
// ok is false when another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// EventPublisher fans lifecycle events out to subscribers. Publishing never
// fails from the caller's point of view.
type EventPublisher interface {
	Publish(ctx context.Context, evt event.Event)
}
