package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker around a gateway.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
	// OnStateChange is optional.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerSettings mirrors the production defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  10,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Breaker wraps a Gateway with a circuit breaker. Business declines
// (ErrGatewayRejected) do not count as failures; only transport-level errors
// trip the circuit.
type Breaker struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*Result]
}

func NewBreaker(next Gateway, s BreakerSettings) *Breaker {
	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domainErrors.ErrGatewayRejected)
		},
	}
	if s.OnStateChange != nil {
		settings.OnStateChange = s.OnStateChange
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[*Result](settings)}
}

func (b *Breaker) Name() string { return b.next.Name() }

// State exposes the breaker state for health reporting.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) AttemptCharge(ctx context.Context, p *payment.Payment, details ChargeDetails) (*Result, error) {
	res, err := b.cb.Execute(func() (*Result, error) {
		return b.next.AttemptCharge(ctx, p, details)
	})
	return res, b.mapErr(err)
}

func (b *Breaker) AttemptRefund(ctx context.Context, p *payment.Payment, req RefundRequest) (*Result, error) {
	res, err := b.cb.Execute(func() (*Result, error) {
		return b.next.AttemptRefund(ctx, p, req)
	})
	return res, b.mapErr(err)
}

func (b *Breaker) mapErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %w", b.next.Name(), domainErrors.ErrGatewayUnavailable, err)
	}
	return err
}
