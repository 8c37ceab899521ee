package gateway

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
)

// Recorder receives one observation per gateway call.
type Recorder interface {
	ObserveGatewayCall(gateway, operation, outcome string, took time.Duration)
}

// Instrumented reports every call of the wrapped gateway to a Recorder.
type Instrumented struct {
	next     Gateway
	recorder Recorder
}

func NewInstrumented(next Gateway, recorder Recorder) *Instrumented {
	return &Instrumented{next: next, recorder: recorder}
}

func (g *Instrumented) Name() string { return g.next.Name() }

func (g *Instrumented) AttemptCharge(ctx context.Context, p *payment.Payment, details ChargeDetails) (*Result, error) {
	start := time.Now()
	res, err := g.next.AttemptCharge(ctx, p, details)
	g.recorder.ObserveGatewayCall(g.next.Name(), "charge", Outcome(err), time.Since(start))
	return res, err
}

func (g *Instrumented) AttemptRefund(ctx context.Context, p *payment.Payment, req RefundRequest) (*Result, error) {
	start := time.Now()
	res, err := g.next.AttemptRefund(ctx, p, req)
	g.recorder.ObserveGatewayCall(g.next.Name(), "refund", Outcome(err), time.Since(start))
	return res, err
}

// Outcome classifies a gateway error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domainErrors.ErrGatewayRejected):
		return "rejected"
	case errors.Is(err, domainErrors.ErrGatewayTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domainErrors.ErrGatewayUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
