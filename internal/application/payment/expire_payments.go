package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/domain/payment"
)

// ExpireOverdue moves every pending payment whose window has elapsed to
// expired and returns how many it moved. Payments locked by another operation
// are left for the next sweep. Running it twice is the same as running it once.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.clock()
	pending := payment.StatusPending
	overdue, err := s.repo.List(ctx, payment.ListFilter{
		Status:        &pending,
		ExpiresBefore: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("list overdue payments: %w", err)
	}

	var (
		expired int
		errs    []error
	)
	for _, candidate := range overdue {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		ok, err := s.expireOne(ctx, candidate)
		if err != nil {
			s.logger.Error().Err(err).Str("payment_id", candidate.ID.String()).Msg("failed to expire payment")
			errs = append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		s.logger.Info().Int("count", expired).Msg("expired overdue payments")
	}
	return expired, errors.Join(errs...)
}

func (s *Service) expireOne(ctx context.Context, candidate *payment.Payment) (bool, error) {
	release, ok, err := s.locker.TryLock(ctx, candidate.ID.String())
	if err != nil {
		return false, err
	}
	if !ok {
		s.logger.Debug().Str("payment_id", candidate.ID.String()).Msg("payment busy, skipping expiry")
		return false, nil
	}
	defer release()

	// Re-read under the lock; the listing may be stale.
	p, err := s.repo.GetByID(ctx, candidate.ID)
	if err != nil {
		return false, err
	}
	if p.Status != payment.StatusPending || !p.IsExpired(s.clock()) {
		return false, nil
	}
	return true, s.expire(ctx, p)
}

// expire persists the expired status and notifies subscribers. The caller
// holds the payment's lock.
func (s *Service) expire(ctx context.Context, p *payment.Payment) error {
	from := p.Status
	if err := p.MarkExpired(s.clock()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Time("expires_at", p.ExpiresAt).
		Msg("payment expired")

	s.publishStatusChange(ctx, p, from)
	s.publish(ctx, event.PaymentExpired, p, map[string]any{
		"expires_at": p.ExpiresAt,
	})
	return nil
}
