package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/payorders/internal/middleware"
	"github.com/redis/go-redis/v9"
)

// IdempotencyStore caches replayable responses keyed by Idempotency-Key.
type IdempotencyStore struct {
	client redis.Cmdable
	prefix string
}

func NewIdempotencyStore(client redis.Cmdable) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: "payorders:idem:"}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*middleware.IdempotencyEntry, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}

	var e middleware.IdempotencyEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return &e, nil
}

func (s *IdempotencyStore) Set(ctx context.Context, entry *middleware.IdempotencyEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode idempotency entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+entry.Key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}
