package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper expires overdue payments. Implemented by the payment service.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Reaper runs the expiry sweep on a fixed interval. Payments still expire
// lazily on read and process when no reaper is running.
type Reaper struct {
	sweeper  Sweeper
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReaper(sweeper Sweeper, interval time.Duration, logger zerolog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With().Str("component", "expiry_reaper").Logger(),
	}
}

// SweepOnce runs a single sweep synchronously.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := r.sweeper.ExpireOverdue(ctx)
	if err != nil {
		r.logger.Error().Err(err).Int("expired", n).Msg("expiry sweep finished with errors")
		return n, err
	}
	r.logger.Debug().Int("expired", n).Dur("took", time.Since(start)).Msg("expiry sweep finished")
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. Sweep errors are logged
// and do not stop the loop.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Msg("expiry reaper started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("expiry reaper stopped")
			return nil
		case <-ticker.C:
			_, _ = r.SweepOnce(ctx)
		}
	}
}

// Start runs the reaper in the background. Calling Start on a running reaper
// does nothing.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
}

// Stop cancels a started reaper and waits for the current sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
