package payment

import (
	"context"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/domain/method"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/internal/infrastructure/gateway"
	"github.com/cassiomorais/payorders/internal/infrastructure/lock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cassiomorais/payorders/internal/application/payment"

// Config holds the limits applied to every payment.
type Config struct {
	Timeout             time.Duration
	MaxAttempts         int
	SupportedCurrencies []string
	MinAmount           decimal.Decimal
	MaxAmount           decimal.Decimal
	DefaultCurrency     string
	BaseURL             string
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Minute,
		MaxAttempts:         3,
		SupportedCurrencies: []string{"USD", "EUR", "GBP", "BRL", "JPY"},
		MinAmount:           decimal.RequireFromString("0.01"),
		MaxAmount:           decimal.NewFromInt(100000),
		DefaultCurrency:     "USD",
		BaseURL:             "http://localhost:8080/api/v1",
	}
}

// Service is the only component allowed to change a payment's status.
type Service struct {
	cfg       Config
	repo      payment.Repository
	catalog   *method.Catalog
	gateway   gateway.Gateway
	events    EventPublisher
	locker    Locker
	validator *Validator
	rounding  RoundingPolicy
	now       func() time.Time
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now. Tests use it to move past expiry windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRounding(r RoundingPolicy) Option {
	return func(s *Service) { s.rounding = r }
}

// WithLocker swaps the in-process keyed locker, e.g. for a Redis lock shared
// between API replicas.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// NewService wires the state machine to its collaborators.
func NewService(
	cfg Config,
	repo payment.Repository,
	catalog *method.Catalog,
	gw gateway.Gateway,
	events EventPublisher,
	opts ...Option,
) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	cfg.DefaultCurrency = strings.ToUpper(cfg.DefaultCurrency)

	s := &Service{
		cfg:      cfg,
		repo:     repo,
		catalog:  catalog,
		gateway:  gw,
		events:   events,
		locker:   lock.NewKeyedLocker(),
		rounding: DefaultRounding(),
		now:      time.Now,
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "payment_service").Logger()
	s.validator = NewValidator(catalog, cfg, s.rounding)
	return s
}

// Validator exposes the request validator used by Create.
func (s *Service) Validator() *Validator {
	return s.validator
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// acquire takes the per-payment lock or reports the payment as busy.
func (s *Service) acquire(ctx context.Context, id uuid.UUID, op string) (func(), error) {
	release, ok, err := s.locker.TryLock(ctx, id.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainErrors.NewInProgressError(op)
	}
	return release, nil
}

func (s *Service) publish(ctx context.Context, name event.Name, p *payment.Payment, data map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event.New(name, p.ID, s.clock(), data))
}

func (s *Service) publishStatusChange(ctx context.Context, p *payment.Payment, from payment.PaymentStatus) {
	s.publish(ctx, event.PaymentStatusChanged, p, map[string]any{
		"from":     string(from),
		"to":       string(p.Status),
		"attempts": p.Attempts,
	})
}
