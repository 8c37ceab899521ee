package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/payorders/internal/application/expiry"
	"github.com/cassiomorais/payorders/internal/bootstrap"
	"github.com/cassiomorais/payorders/internal/infrastructure/eventbus"
	"github.com/cassiomorais/payorders/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/payorders/internal/infrastructure/redis"
	"golang.org/x/sync/errgroup"
)

// observedSweeper reports every sweep to metrics.
type observedSweeper struct {
	next    expiry.Sweeper
	metrics *observability.Metrics
}

func (s observedSweeper) ExpireOverdue(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.next.ExpireOverdue(ctx)
	s.metrics.ObserveSweep(err)
	s.metrics.WorkerProcessingDuration.WithLabelValues("expiry").Observe(time.Since(start).Seconds())
	return n, err
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payorders-worker", "payorders_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config
	if cfg.Storage.Driver == "memory" {
		app.Logger.Warn().Msg("Worker is running on in-memory storage; it only sees its own payments")
	}

	reaper := expiry.NewReaper(
		observedSweeper{next: app.Service, metrics: app.Metrics},
		cfg.Worker.ExpiryInterval,
		app.Logger,
	)

	var relay *infraRedis.Relay
	if cfg.Events.Sink == "redis" {
		relay, err = newRelay(ctx, app)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to start event relay")
			return
		}
	} else {
		app.Logger.Info().Str("sink", cfg.Events.Sink).Msg("Event relay disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Expiry sweeps.
	g.Go(func() error {
		return reaper.Run(gCtx)
	})

	// 2. Event relay from the Redis stream to the downstream target.
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gCtx)
		})
	}

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

func newRelay(ctx context.Context, app *bootstrap.App) (*infraRedis.Relay, error) {
	cfg := app.Config

	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		cfg.Events.Stream,
		cfg.Worker.ConsumerGroup,
		cfg.InstanceID,
		cfg.Worker.BatchSize,
		cfg.Worker.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	var sink infraRedis.EventSink = eventbus.NewLogSink(app.Logger)
	if cfg.Events.RelayTarget == "kafka" {
		producer, err := app.Kafka(ctx)
		if err != nil {
			return nil, err
		}
		sink = producer
	}

	relay := infraRedis.NewRelay(consumer, infraRedis.NewStreamProducer(app.Redis, infraRedis.DLQStream), sink, app.Logger)
	relay.OnMessage(func(outcome string) {
		app.Metrics.WorkerMessagesProcessed.WithLabelValues(cfg.Events.Stream, outcome).Inc()
	})

	app.Logger.Info().
		Str("stream", cfg.Events.Stream).
		Str("group", cfg.Worker.ConsumerGroup).
		Str("consumer", cfg.InstanceID).
		Str("target", cfg.Events.RelayTarget).
		Msg("Event relay started")
	return relay, nil
}
