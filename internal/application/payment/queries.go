package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// PaymentView is the externally visible projection of a payment. Retry
// bookkeeping and raw gateway responses stay internal.
type PaymentView struct {
	ID            uuid.UUID
	OrderID       string
	CustomerID    string
	Email         string
	Phone         string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Total         decimal.Decimal
	Currency      string
	Method        string
	Description   string
	Status        payment.PaymentStatus
	TransactionID *string
	CancelReason  *string
	Refund        *RefundView
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}

type RefundView struct {
	ID            uuid.UUID
	Amount        decimal.Decimal
	Reason        string
	Status        payment.RefundStatus
	RequestedAt   time.Time
	ProcessedAt   *time.Time
	TransactionID *string
	Error         *string
}

// NewPaymentView projects p.
func NewPaymentView(p *payment.Payment) PaymentView {
	c := p.Clone()
	v := PaymentView{
		ID:            c.ID,
		OrderID:       c.OrderID,
		CustomerID:    c.CustomerID,
		Email:         c.Email,
		Phone:         c.Phone,
		Amount:        c.Amount,
		Fee:           c.Fee,
		Total:         c.Total,
		Currency:      c.Currency,
		Method:        c.Method,
		Description:   c.Description,
		Status:        c.Status,
		TransactionID: c.TransactionID,
		CancelReason:  c.CancelReason,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		ExpiresAt:     c.ExpiresAt,
	}
	if r := c.Refund; r != nil {
		v.Refund = &RefundView{
			ID:            r.ID,
			Amount:        r.Amount,
			Reason:        r.Reason,
			Status:        r.Status,
			RequestedAt:   r.RequestedAt,
			ProcessedAt:   r.ProcessedAt,
			TransactionID: r.TransactionID,
			Error:         r.Error,
		}
	}
	return v
}

// StatusView answers a status lookup. Payment is nil when Found is false.
type StatusView struct {
	Found   bool
	Payment *PaymentView
}

// GetStatus returns the sanitized payment. An overdue pending payment is
// expired on read unless another operation holds it.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domainErrors.ErrPaymentNotFound) {
		return &StatusView{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}

	if p.Status == payment.StatusPending && p.IsExpired(s.clock()) {
		if expired, err := s.expireOne(ctx, p); err != nil {
			s.logger.Warn().Err(err).Str("payment_id", id.String()).Msg("lazy expiry failed")
		} else if expired {
			if p, err = s.repo.GetByID(ctx, id); err != nil {
				return nil, err
			}
		}
	}

	view := NewPaymentView(p)
	return &StatusView{Found: true, Payment: &view}, nil
}

// HistoryOptions filters a customer's history. Zero values mean "any".
type HistoryOptions struct {
	Status    *payment.PaymentStatus
	Method    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// HistoryPage is one page of history, newest first.
type HistoryPage struct {
	Payments []PaymentView
	Total    int
	HasMore  bool
}

// GetUserHistory pages through a customer's payments. A blank userID is
// rejected rather than treated as "every customer".
func (s *Service) GetUserHistory(ctx context.Context, userID string, opts HistoryOptions) (*HistoryPage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domainErrors.NewValidationError("user_id", "is required")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)
	offset := max(opts.Offset, 0)

	filter := payment.ListFilter{
		CustomerID:  userID,
		Status:      opts.Status,
		Method:      opts.Method,
		CreatedFrom: opts.StartDate,
		CreatedTo:   opts.EndDate,
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}

	filter.Limit = limit
	filter.Offset = offset
	payments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	views := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, NewPaymentView(p))
	}
	return &HistoryPage{
		Payments: views,
		Total:    total,
		HasMore:  offset+len(views) < total,
	}, nil
}
