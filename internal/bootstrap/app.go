package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsDynamo "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	appPayment "github.com/cassiomorais/payorders/internal/application/payment"
	"github.com/cassiomorais/payorders/internal/controller"
	"github.com/cassiomorais/payorders/internal/domain/method"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/internal/infrastructure/config"
	"github.com/cassiomorais/payorders/internal/infrastructure/eventbus"
	"github.com/cassiomorais/payorders/internal/infrastructure/gateway"
	"github.com/cassiomorais/payorders/internal/infrastructure/kafka"
	"github.com/cassiomorais/payorders/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/payorders/internal/infrastructure/redis"
	"github.com/cassiomorais/payorders/internal/middleware"
	"github.com/cassiomorais/payorders/internal/repository/dynamodb"
	"github.com/cassiomorais/payorders/internal/repository/memory"
	"github.com/cassiomorais/payorders/internal/repository/postgres"
	"github.com/cassiomorais/payorders/pkg/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App holds the wired dependencies shared by the API and the worker.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *observability.Metrics
	Bus     *eventbus.InMemoryBus
	Catalog *method.Catalog
	Service *appPayment.Service

	Pool        *pgxpool.Pool // nil unless storage.driver is postgres
	Redis       *redis.Client // nil unless a redis-backed feature is enabled
	Idempotency middleware.IdempotencyStore
	Checks      map[string]controller.Pinger

	tracer  *sdktrace.TracerProvider
	kafka   *kafka.Producer
	closers []func()
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout).
		With().Str("service", serviceName).Logger()
	logger.Info().Str("storage", cfg.Storage.Driver).Str("events", cfg.Events.Sink).Msg("Starting")

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(metricsNamespace, nil),
		Bus:     eventbus.NewInMemoryBus(logger),
		Catalog: method.DefaultCatalog(),
		Checks:  make(map[string]controller.Pinger),
	}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	if cfg.Events.Sink == "redis" || cfg.Payment.LockBackend == "redis" {
		client, err := infraRedis.NewClient(ctx, &cfg.Redis, a.Logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.Redis = client
		a.closers = append(a.closers, func() { client.Close() })
		a.Checks["redis"] = controller.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		a.Idempotency = infraRedis.NewIdempotencyStore(client)
		a.Logger.Info().Msg("Connected to Redis")
	}

	repo, err := a.newRepository(ctx)
	if err != nil {
		return err
	}

	a.Metrics.SubscribeLifecycle(a.Bus)
	switch cfg.Events.Sink {
	case "redis":
		a.Bus.Forward(infraRedis.NewStreamProducer(a.Redis, cfg.Events.Stream))
	case "kafka":
		producer, err := a.Kafka(ctx)
		if err != nil {
			return err
		}
		a.Bus.Forward(producer)
	}

	opts := []appPayment.Option{appPayment.WithLogger(a.Logger)}
	if cfg.Payment.LockBackend == "redis" {
		opts = append(opts, appPayment.WithLocker(infraRedis.NewLocker(a.Redis, cfg.Payment.LockTTL, a.Logger)))
	}

	minAmount, maxAmount := cfg.Payment.Bounds()
	a.Service = appPayment.NewService(
		appPayment.Config{
			Timeout:             cfg.Payment.Timeout,
			MaxAttempts:         cfg.Payment.RetryAttempts,
			SupportedCurrencies: cfg.Payment.Currencies(),
			MinAmount:           minAmount,
			MaxAmount:           maxAmount,
			DefaultCurrency:     cfg.Payment.DefaultCurrency,
			BaseURL:             cfg.Payment.BaseURL,
		},
		repo,
		a.Catalog,
		a.newGateway(),
		a.Bus,
		opts...,
	)
	return nil
}

func (a *App) newRepository(ctx context.Context) (payment.Repository, error) {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, &cfg.Database, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)
		a.Checks["postgres"] = pool
		if a.Idempotency == nil {
			a.Idempotency = postgres.NewIdempotencyRepository(pool)
		}
		a.Logger.Info().Msg("Connected to PostgreSQL")
		return postgres.NewPaymentRepository(pool), nil

	case "dynamodb":
		client, err := dynamodb.NewClient(ctx, &cfg.DynamoDB)
		if err != nil {
			return nil, fmt.Errorf("create dynamodb client: %w", err)
		}
		if cfg.DynamoDB.Endpoint != "" {
			if err := dynamodb.EnsureTable(ctx, client, cfg.DynamoDB.Table); err != nil {
				return nil, err
			}
		}
		table := cfg.DynamoDB.Table
		a.Checks["dynamodb"] = controller.PingFunc(func(ctx context.Context) error {
			_, err := client.DescribeTable(ctx, &awsDynamo.DescribeTableInput{TableName: aws.String(table)})
			return err
		})
		a.Logger.Info().Str("table", table).Msg("Using DynamoDB")
		return dynamodb.NewPaymentRepository(client, table), nil

	default:
		a.Logger.Warn().Msg("Using in-memory storage, payments are lost on restart")
		return memory.NewPaymentRepository(), nil
	}
}

// newGateway builds the configured adapter behind a circuit breaker, with
// every call reported to metrics.
func (a *App) newGateway() gateway.Gateway {
	cfg := a.Config.Gateway

	var gw gateway.Gateway
	switch cfg.Driver {
	case "http":
		gw = gateway.NewHTTPGateway(gateway.HTTPConfig{
			Name:    cfg.Name,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
			Retry: retry.Config{
				MaxAttempts:  cfg.RetryAttempts,
				InitialDelay: cfg.RetryDelay,
				MaxDelay:     10 * cfg.RetryDelay,
			},
		}, a.Logger)
	default:
		gw = gateway.NewMockGateway(cfg.Name,
			gateway.WithLatency(cfg.MockLatency),
			gateway.WithFailureRate(cfg.MockFailureRate),
		)
	}

	settings := gateway.DefaultBreakerSettings()
	if cfg.BreakerRequests > 0 {
		settings.MinRequests = cfg.BreakerRequests
	}
	if cfg.BreakerRatio > 0 {
		settings.FailureRatio = cfg.BreakerRatio
	}
	if cfg.BreakerTimeout > 0 {
		settings.Timeout = cfg.BreakerTimeout
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		a.Metrics.SetBreakerState(name, int(to))
		a.Logger.Warn().Str("gateway", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
	}

	a.Logger.Info().Str("driver", cfg.Driver).Str("gateway", gw.Name()).Msg("Payment gateway ready")
	return gateway.NewInstrumented(gateway.NewBreaker(gw, settings), a.Metrics)
}

// Kafka returns the shared producer, connecting on first use.
func (a *App) Kafka(ctx context.Context) (*kafka.Producer, error) {
	if a.kafka != nil {
		return a.kafka, nil
	}
	producer, err := kafka.NewProducer(ctx, a.Config.Kafka, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect to kafka: %w", err)
	}
	a.kafka = producer
	a.closers = append(a.closers, func() {
		if err := producer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("kafka producer close failed")
		}
	})
	return producer, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx, a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
		a.tracer = nil
	}
}
