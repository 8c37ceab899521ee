package payment

import (
	"fmt"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus is the state of the refund sub-record.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundCompleted RefundStatus = "completed"
	RefundFailed    RefundStatus = "failed"
)

// Refund is the single refund a completed payment may carry.
type Refund struct {
	ID            uuid.UUID
	Amount        decimal.Decimal
	Reason        string
	Status        RefundStatus
	RequestedAt   time.Time
	ProcessedAt   *time.Time
	TransactionID *string
	Error         *string
}

// RequestRefund attaches a pending refund. Only one refund per payment is allowed,
// and a failed refund still counts.
func (p *Payment) RequestRefund(amount decimal.Decimal, reason string, now time.Time) (*Refund, error) {
	if p.Status != StatusCompleted {
		return nil, errors.NewInvalidStateError("refund", string(p.Status))
	}
	places := MinorUnits(p.Currency)
	if !amount.IsPositive() || amount.GreaterThan(p.Amount) {
		return nil, errors.NewDomainError(
			"invalid_amount",
			"refund amount must be greater than 0 and at most "+p.Amount.StringFixed(places),
			errors.ErrInvalidAmount,
		)
	}
	if !amount.Equal(amount.Round(places)) {
		return nil, errors.NewDomainError(
			"invalid_amount",
			fmt.Sprintf("refund amount must have at most %d decimal places for %s", places, p.Currency),
			errors.ErrInvalidAmount,
		)
	}
	if p.Refund != nil {
		return nil, errors.NewDomainError(
			"duplicate_refund",
			"payment already has a "+string(p.Refund.Status)+" refund",
			errors.ErrDuplicateRefund,
		)
	}

	p.Refund = &Refund{
		ID:          uuid.New(),
		Amount:      amount,
		Reason:      reason,
		Status:      RefundPending,
		RequestedAt: now,
	}
	p.UpdatedAt = now
	return p.Refund, nil
}

// CompleteRefund records a successful refund and moves the payment to refunded.
func (p *Payment) CompleteRefund(transactionID string, now time.Time) error {
	if p.Refund == nil || p.Refund.Status != RefundPending {
		return errors.NewDomainError("invalid_refund", "no pending refund", errors.ErrInvalidStateTransition)
	}
	if err := p.TransitionTo(StatusRefunded, now); err != nil {
		return err
	}
	p.Refund.Status = RefundCompleted
	p.Refund.ProcessedAt = &now
	p.Refund.TransactionID = &transactionID
	return nil
}

// FailRefund records a failed refund. The payment stays completed.
func (p *Payment) FailRefund(errMsg string, now time.Time) error {
	if p.Refund == nil || p.Refund.Status != RefundPending {
		return errors.NewDomainError("invalid_refund", "no pending refund", errors.ErrInvalidStateTransition)
	}
	p.Refund.Status = RefundFailed
	p.Refund.ProcessedAt = &now
	p.Refund.Error = &errMsg
	p.UpdatedAt = now
	return nil
}
