package payment

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/internal/infrastructure/gateway"
	"github.com/cassiomorais/payorders/pkg/saga"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequestRefund refunds part or all of a completed payment. A payment carries
// at most one refund: once recorded, even a failed refund blocks further
// requests with ErrDuplicateRefund.
func (s *Service) RequestRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal, reason string) (*payment.Refund, error) {
	release, err := s.acquire(ctx, id, "refund")
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	refund, err := p.RequestRefund(amount, reason, s.clock())
	if err != nil {
		return nil, err
	}

	var (
		result *gateway.Result
		gwErr  error
	)

	refundSaga := saga.New("refund-payment").
		AddStep(saga.Step{
			Name: "record-refund",
			Execute: func(ctx context.Context) error {
				if err := s.repo.Update(ctx, p); err != nil {
					return fmt.Errorf("save pending refund: %w", err)
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				msg := "refund aborted"
				if gwErr != nil {
					msg = gwErr.Error()
				}
				if err := p.FailRefund(msg, s.clock()); err != nil {
					return err
				}
				if err := s.repo.Update(ctx, p); err != nil {
					return fmt.Errorf("save failed refund: %w", err)
				}
				s.publish(ctx, event.RefundFailed, p, map[string]any{
					"refund_id": refund.ID.String(),
					"amount":    refund.Amount.String(),
					"error":     msg,
				})
				return nil
			},
		}).
		AddStep(saga.Step{
			Name: "call-gateway",
			Execute: func(ctx context.Context) error {
				result, gwErr = s.refund(ctx, p)
				return gwErr
			},
		})

	if _, err := refundSaga.Execute(ctx); err != nil {
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) && stepErr.CompensationErr != nil {
			s.logger.Error().
				Err(stepErr.CompensationErr).
				Str("payment_id", p.ID.String()).
				Msg("failed to record refund failure")
		}
		if gwErr == nil {
			return nil, err
		}
		s.logger.Warn().
			Err(gwErr).
			Str("payment_id", p.ID.String()).
			Str("refund_id", refund.ID.String()).
			Msg("refund failed")
		return nil, domainErrors.NewGatewayError(gwErr.Error(), gwErr)
	}

	ctx = context.WithoutCancel(ctx)
	txID := ""
	if result != nil {
		txID = result.TransactionID
	}
	if err := p.CompleteRefund(txID, s.clock()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("refund_id", refund.ID.String()).
		Str("amount", refund.Amount.String()).
		Msg("payment refunded")

	s.publishStatusChange(ctx, p, payment.StatusCompleted)
	s.publish(ctx, event.RefundCompleted, p, map[string]any{
		"refund_id":      refund.ID.String(),
		"amount":         refund.Amount.String(),
		"currency":       p.Currency,
		"transaction_id": txID,
		"reason":         reason,
	})

	return p.Clone().Refund, nil
}

func (s *Service) refund(ctx context.Context, p *payment.Payment) (*gateway.Result, error) {
	ctx, span := s.tracer.Start(ctx, "gateway.AttemptRefund", trace.WithAttributes(
		attribute.String("payment.id", p.ID.String()),
		attribute.String("refund.id", p.Refund.ID.String()),
		attribute.String("gateway.name", s.gateway.Name()),
	))
	defer span.End()

	txID := ""
	if p.TransactionID != nil {
		txID = *p.TransactionID
	}
	result, err := s.gateway.AttemptRefund(ctx, p.Clone(), gateway.RefundRequest{
		RefundID:      p.Refund.ID.String(),
		TransactionID: txID,
		Amount:        p.Refund.Amount,
		Currency:      p.Currency,
		Reason:        p.Refund.Reason,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}
