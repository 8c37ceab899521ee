package payment

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
)

// Cancel stops a payment that has not finished. Only pending and processing
// payments can be cancelled; a processing payment is locked while its gateway
// call is in flight, so cancel never races a charge.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*payment.Payment, error) {
	release, err := s.acquire(ctx, id, "cancel")
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != payment.StatusPending && p.Status != payment.StatusProcessing {
		return nil, domainErrors.NewInvalidStateError("cancel", string(p.Status))
	}
	if p.Status == payment.StatusPending && p.IsExpired(s.clock()) {
		if err := s.expire(ctx, p); err != nil {
			return nil, err
		}
		return nil, domainErrors.NewExpiredError()
	}

	from := p.Status
	if err := p.MarkCancelled(reason, s.clock()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("reason", reason).
		Msg("payment cancelled")

	s.publishStatusChange(ctx, p, from)
	s.publish(ctx, event.PaymentCancelled, p, map[string]any{"reason": reason})

	return p.Clone(), nil
}
