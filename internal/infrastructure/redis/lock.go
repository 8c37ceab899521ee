package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// Lua script for safe lock release (only owner can release)
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	// Lua script for lock extension
	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// DistributedLock is a single-owner lock held in Redis with a TTL.
type DistributedLock struct {
	client   redis.Cmdable
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

func NewDistributedLock(client redis.Cmdable, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = success
	return success, nil
}

// Extend pushes the lock expiry out by ttl.
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if !l.acquired {
		return domainErrors.ErrLockNotHeld
	}

	result, err := extendLockScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if val, ok := result.(int64); !ok || val == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Release releases the lock
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	result, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	l.acquired = false

	if val, ok := result.(int64); !ok || val == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// IsAcquired returns whether the lock is acquired
func (l *DistributedLock) IsAcquired() bool {
	return l.acquired
}

// Locker hands out per-key distributed locks. It serializes payment
// mutations across API replicas. A held lock is renewed every ttl/3 until
// released, so a slow gateway call cannot outlive it.
type Locker struct {
	client redis.Cmdable
	ttl    time.Duration
	renew  time.Duration
	prefix string
	logger zerolog.Logger
}

func NewLocker(client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *Locker {
	return &Locker{
		client: client,
		ttl:    ttl,
		renew:  ttl / 3,
		prefix: "payorders:payment:",
		logger: logger.With().Str("component", "redis_lock").Logger(),
	}
}

// TryLock takes the lock for key without waiting.
func (l *Locker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	lock := NewDistributedLock(l.client, l.prefix+key, l.ttl)
	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		return nil, false, err
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(renewCtx, lock, l.ttl, l.renew, func(err error) {
			l.logger.Warn().Err(err).Str("key", key).Msg("lock renewal failed")
		})
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			stop()
			<-done
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, domainErrors.ErrLockNotHeld) {
				l.logger.Error().Err(err).Str("key", key).Msg("failed to release lock")
			} else if err != nil {
				l.logger.Warn().Str("key", key).Msg("lock expired before release")
			}
		})
	}
	return release, true, nil
}

type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// keepAlive extends lock to ttl every interval until ctx ends or the lock
// is lost. Transient errors are reported and retried on the next tick.
func keepAlive(ctx context.Context, lock extender, ttl, interval time.Duration, onError func(error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := lock.Extend(ctx, ttl)
			if err == nil || ctx.Err() != nil {
				continue
			}
			onError(err)
			if errors.Is(err, domainErrors.ErrLockNotHeld) {
				return
			}
		}
	}
}
