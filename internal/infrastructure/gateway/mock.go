package gateway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
)

// MockGateway simulates a gateway. Scripted outcomes are consumed first, in
// order; after that the random failure and timeout rates apply.
type MockGateway struct {
	name        string
	failureRate float64 // 0.0 to 1.0
	timeoutRate float64 // 0.0 to 1.0
	latency     time.Duration

	mu           sync.Mutex
	chargeScript []error
	refundScript []error
	chargeCalls  atomic.Int64
	refundCalls  atomic.Int64
	beforeCharge func(p *payment.Payment)
}

type MockOption func(*MockGateway)

func WithFailureRate(rate float64) MockOption {
	return func(g *MockGateway) { g.failureRate = rate }
}

func WithTimeoutRate(rate float64) MockOption {
	return func(g *MockGateway) { g.timeoutRate = rate }
}

func WithLatency(d time.Duration) MockOption {
	return func(g *MockGateway) { g.latency = d }
}

// WithChargeOutcomes scripts the next charge results. A nil entry succeeds.
func WithChargeOutcomes(outcomes ...error) MockOption {
	return func(g *MockGateway) { g.chargeScript = append(g.chargeScript, outcomes...) }
}

// WithRefundOutcomes scripts the next refund results. A nil entry succeeds.
func WithRefundOutcomes(outcomes ...error) MockOption {
	return func(g *MockGateway) { g.refundScript = append(g.refundScript, outcomes...) }
}

// WithChargeHook runs fn before each charge, after latency.
func WithChargeHook(fn func(p *payment.Payment)) MockOption {
	return func(g *MockGateway) { g.beforeCharge = fn }
}

func NewMockGateway(name string, opts ...MockOption) *MockGateway {
	g := &MockGateway{
		name:    name,
		latency: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Name() string { return g.name }

// ChargeCalls returns how many charge attempts reached the gateway.
func (g *MockGateway) ChargeCalls() int { return int(g.chargeCalls.Load()) }

// RefundCalls returns how many refund attempts reached the gateway.
func (g *MockGateway) RefundCalls() int { return int(g.refundCalls.Load()) }

func (g *MockGateway) AttemptCharge(ctx context.Context, p *payment.Payment, details ChargeDetails) (*Result, error) {
	g.chargeCalls.Add(1)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if g.beforeCharge != nil {
		g.beforeCharge(p)
	}

	if scripted, err := g.next(&g.chargeScript); scripted {
		if err != nil {
			return g.failed(p, err), err
		}
		return g.succeeded(p, "txn"), nil
	}

	if rand.Float64() < g.timeoutRate {
		return nil, domainErrors.ErrGatewayTimeout
	}
	if rand.Float64() < g.failureRate {
		err := fmt.Errorf("%s: simulated charge failure for payment %s: %w", g.name, p.ID, domainErrors.ErrGatewayRejected)
		return g.failed(p, err), err
	}
	return g.succeeded(p, "txn"), nil
}

func (g *MockGateway) AttemptRefund(ctx context.Context, p *payment.Payment, req RefundRequest) (*Result, error) {
	g.refundCalls.Add(1)
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	if scripted, err := g.next(&g.refundScript); scripted {
		if err != nil {
			return g.failed(p, err), err
		}
		return g.succeeded(p, "refund"), nil
	}

	if rand.Float64() < g.failureRate {
		err := fmt.Errorf("%s: simulated refund failure: %w", g.name, domainErrors.ErrGatewayRejected)
		return g.failed(p, err), err
	}
	return g.succeeded(p, "refund"), nil
}

func (g *MockGateway) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(g.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *MockGateway) next(script *[]error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(*script) == 0 {
		return false, nil
	}
	err := (*script)[0]
	*script = (*script)[1:]
	return true, err
}

func (g *MockGateway) succeeded(p *payment.Payment, kind string) *Result {
	txID := fmt.Sprintf("%s_%s_%s", g.name, kind, uuid.New().String()[:8])
	return &Result{
		TransactionID: txID,
		Response: map[string]any{
			"gateway":        g.name,
			"status":         "success",
			"transaction_id": txID,
			"payment_id":     p.ID.String(),
		},
	}
}

func (g *MockGateway) failed(p *payment.Payment, err error) *Result {
	return &Result{
		Response: map[string]any{
			"gateway":    g.name,
			"status":     "failed",
			"error":      err.Error(),
			"payment_id": p.ID.String(),
		},
	}
}
