package payment

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/internal/infrastructure/gateway"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProcessResult is returned when a charge attempt succeeds.
type ProcessResult struct {
	Payment       *payment.Payment
	TransactionID string
}

// Process makes one charge attempt for a pending payment.
//
// A failed attempt puts the payment back to pending with the attempt consumed,
// or fails it for good once attempts are exhausted. Either way the caller gets
// a gateway error carrying the adapter's message.
func (s *Service) Process(ctx context.Context, id uuid.UUID, details gateway.ChargeDetails) (*ProcessResult, error) {
	release, err := s.acquire(ctx, id, "process")
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != payment.StatusPending {
		return nil, domainErrors.NewInvalidStateError("process", string(p.Status))
	}

	now := s.clock()
	if p.IsExpired(now) {
		if err := s.expire(ctx, p); err != nil {
			return nil, err
		}
		return nil, domainErrors.NewExpiredError()
	}

	if err := p.StartAttempt(now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	s.publishStatusChange(ctx, p, payment.StatusPending)

	result, gwErr := s.charge(ctx, p, details)

	// The attempt has been made; its outcome is recorded even if the caller left.
	ctx = context.WithoutCancel(ctx)
	now = s.clock()

	if gwErr != nil {
		return nil, s.recordFailedAttempt(ctx, p, result, gwErr)
	}

	if err := p.MarkCompleted(result.TransactionID, result.Response, now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("transaction_id", result.TransactionID).
		Int("attempts", p.Attempts).
		Msg("payment completed")

	s.publishStatusChange(ctx, p, payment.StatusProcessing)
	s.publish(ctx, event.PaymentCompleted, p, map[string]any{
		"transaction_id": result.TransactionID,
		"amount":         p.Amount.String(),
		"total":          p.Total.String(),
		"currency":       p.Currency,
		"method":         p.Method,
		"attempts":       p.Attempts,
	})

	return &ProcessResult{Payment: p.Clone(), TransactionID: result.TransactionID}, nil
}

func (s *Service) charge(ctx context.Context, p *payment.Payment, details gateway.ChargeDetails) (*gateway.Result, error) {
	ctx, span := s.tracer.Start(ctx, "gateway.AttemptCharge", trace.WithAttributes(
		attribute.String("payment.id", p.ID.String()),
		attribute.String("payment.method", p.Method),
		attribute.Int("payment.attempt", p.Attempts),
		attribute.String("gateway.name", s.gateway.Name()),
	))
	defer span.End()

	result, err := s.gateway.AttemptCharge(ctx, p.Clone(), details)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	if result == nil {
		result = &gateway.Result{}
	}
	span.SetAttributes(attribute.String("gateway.transaction_id", result.TransactionID))
	return result, nil
}

func (s *Service) recordFailedAttempt(ctx context.Context, p *payment.Payment, result *gateway.Result, gwErr error) error {
	var response map[string]any
	if result != nil {
		response = result.Response
	}
	msg := gwErr.Error()

	if err := p.MarkAttemptFailed(msg, response, s.clock()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}

	terminal := p.Status == payment.StatusFailed
	s.logger.Warn().
		Err(gwErr).
		Str("payment_id", p.ID.String()).
		Int("attempts", p.Attempts).
		Int("max_attempts", p.MaxAttempts).
		Bool("terminal", terminal).
		Msg("charge attempt failed")

	s.publishStatusChange(ctx, p, payment.StatusProcessing)
	s.publish(ctx, event.PaymentError, p, map[string]any{
		"error":        msg,
		"attempts":     p.Attempts,
		"max_attempts": p.MaxAttempts,
		"terminal":     terminal,
	})
	if terminal {
		s.publish(ctx, event.PaymentFailed, p, map[string]any{
			"error":    msg,
			"attempts": p.Attempts,
			"method":   p.Method,
		})
	}

	return domainErrors.NewGatewayError(msg, gwErr)
}
