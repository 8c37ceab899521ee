package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/domain/payment"
)

// CreateResult is a freshly created payment plus the URL the customer is sent to.
type CreateResult struct {
	Payment    *payment.Payment
	PaymentURL string
}

// Create validates req, computes fee and total, and persists a pending payment.
// Nothing is stored when validation fails.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	result := s.validator.Validate(req)
	if err := result.Err(); err != nil {
		return nil, err
	}

	m, err := s.catalog.Get(req.Method)
	if err != nil {
		return nil, err
	}
	currency := s.validator.currency(req.Currency)
	fee := s.rounding.Round(m.Fee(*req.Amount), currency)

	phone := req.Phone
	if phone != "" {
		phone = NormalizePhone(phone)
	}

	p, err := payment.NewPayment(payment.NewPaymentParams{
		OrderID:     req.OrderID,
		CustomerID:  req.CustomerID,
		Email:       strings.TrimSpace(req.Email),
		Phone:       phone,
		Amount:      *req.Amount,
		Fee:         fee,
		Currency:    currency,
		Method:      m.ID,
		Description: req.Description,
		MaxAttempts: s.cfg.MaxAttempts,
		Timeout:     s.cfg.Timeout,
		Now:         s.clock(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("order_id", p.OrderID).
		Str("method", p.Method).
		Str("total", p.Total.String()).
		Msg("payment created")

	s.publish(ctx, event.PaymentCreated, p, map[string]any{
		"order_id":    p.OrderID,
		"customer_id": p.CustomerID,
		"amount":      p.Amount.String(),
		"fee":         p.Fee.String(),
		"total":       p.Total.String(),
		"currency":    p.Currency,
		"method":      p.Method,
	})

	return &CreateResult{
		Payment:    p.Clone(),
		PaymentURL: strings.TrimRight(s.cfg.BaseURL, "/") + "/payments/" + p.ID.String(),
	}, nil
}
