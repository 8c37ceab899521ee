package dynamodb

import (
	"fmt"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// paymentItem is the stored shape of a payment. Amounts are decimal strings
// and times RFC 3339 strings so they sort and round-trip exactly.
type paymentItem struct {
	ID              string         `dynamodbav:"id"`
	OrderID         string         `dynamodbav:"order_id"`
	CustomerID      string         `dynamodbav:"customer_id"`
	Email           string         `dynamodbav:"email,omitempty"`
	Phone           string         `dynamodbav:"phone,omitempty"`
	Amount          string         `dynamodbav:"amount"`
	Fee             string         `dynamodbav:"fee"`
	Total           string         `dynamodbav:"total"`
	Currency        string         `dynamodbav:"currency"`
	Method          string         `dynamodbav:"method"`
	Description     string         `dynamodbav:"description,omitempty"`
	Status          string         `dynamodbav:"status"`
	Attempts        int            `dynamodbav:"attempts"`
	MaxAttempts     int            `dynamodbav:"max_attempts"`
	TransactionID   *string        `dynamodbav:"transaction_id,omitempty"`
	GatewayResponse map[string]any `dynamodbav:"gateway_response,omitempty"`
	LastError       *string        `dynamodbav:"last_error,omitempty"`
	CancelReason    *string        `dynamodbav:"cancel_reason,omitempty"`
	Refund          *refundItem    `dynamodbav:"refund,omitempty"`
	CreatedAt       string         `dynamodbav:"created_at"`
	UpdatedAt       string         `dynamodbav:"updated_at"`
	ExpiresAt       string         `dynamodbav:"expires_at"`
	Version         int            `dynamodbav:"version"`
}

type refundItem struct {
	ID            string  `dynamodbav:"id"`
	Amount        string  `dynamodbav:"amount"`
	Reason        string  `dynamodbav:"reason,omitempty"`
	Status        string  `dynamodbav:"status"`
	RequestedAt   string  `dynamodbav:"requested_at"`
	ProcessedAt   *string `dynamodbav:"processed_at,omitempty"`
	TransactionID *string `dynamodbav:"transaction_id,omitempty"`
	Error         *string `dynamodbav:"error,omitempty"`
}

func toItem(p *payment.Payment) paymentItem {
	it := paymentItem{
		ID:              p.ID.String(),
		OrderID:         p.OrderID,
		CustomerID:      p.CustomerID,
		Email:           p.Email,
		Phone:           p.Phone,
		Amount:          p.Amount.String(),
		Fee:             p.Fee.String(),
		Total:           p.Total.String(),
		Currency:        p.Currency,
		Method:          p.Method,
		Description:     p.Description,
		Status:          string(p.Status),
		Attempts:        p.Attempts,
		MaxAttempts:     p.MaxAttempts,
		TransactionID:   p.TransactionID,
		GatewayResponse: p.GatewayResponse,
		LastError:       p.LastError,
		CancelReason:    p.CancelReason,
		CreatedAt:       formatTime(p.CreatedAt),
		UpdatedAt:       formatTime(p.UpdatedAt),
		ExpiresAt:       formatTime(p.ExpiresAt),
		Version:         p.Version,
	}
	if r := p.Refund; r != nil {
		it.Refund = &refundItem{
			ID:            r.ID.String(),
			Amount:        r.Amount.String(),
			Reason:        r.Reason,
			Status:        string(r.Status),
			RequestedAt:   formatTime(r.RequestedAt),
			TransactionID: r.TransactionID,
			Error:         r.Error,
		}
		if r.ProcessedAt != nil {
			s := formatTime(*r.ProcessedAt)
			it.Refund.ProcessedAt = &s
		}
	}
	return it
}

func fromItem(it paymentItem) (*payment.Payment, error) {
	var err error
	p := &payment.Payment{
		OrderID:         it.OrderID,
		CustomerID:      it.CustomerID,
		Email:           it.Email,
		Phone:           it.Phone,
		Currency:        it.Currency,
		Method:          it.Method,
		Description:     it.Description,
		Status:          payment.PaymentStatus(it.Status),
		Attempts:        it.Attempts,
		MaxAttempts:     it.MaxAttempts,
		TransactionID:   it.TransactionID,
		GatewayResponse: it.GatewayResponse,
		LastError:       it.LastError,
		CancelReason:    it.CancelReason,
		Version:         it.Version,
	}
	if p.GatewayResponse == nil {
		p.GatewayResponse = make(map[string]any)
	}
	if p.ID, err = uuid.Parse(it.ID); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(it.Amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if p.Fee, err = decimal.NewFromString(it.Fee); err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}
	if p.Total, err = decimal.NewFromString(it.Total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if p.CreatedAt, err = parseTime(it.CreatedAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(it.UpdatedAt); err != nil {
		return nil, err
	}
	if p.ExpiresAt, err = parseTime(it.ExpiresAt); err != nil {
		return nil, err
	}

	if ri := it.Refund; ri != nil {
		r := &payment.Refund{
			Reason:        ri.Reason,
			Status:        payment.RefundStatus(ri.Status),
			TransactionID: ri.TransactionID,
			Error:         ri.Error,
		}
		if r.ID, err = uuid.Parse(ri.ID); err != nil {
			return nil, fmt.Errorf("parse refund id: %w", err)
		}
		if r.Amount, err = decimal.NewFromString(ri.Amount); err != nil {
			return nil, fmt.Errorf("parse refund amount: %w", err)
		}
		if r.RequestedAt, err = parseTime(ri.RequestedAt); err != nil {
			return nil, err
		}
		if ri.ProcessedAt != nil {
			t, err := parseTime(*ri.ProcessedAt)
			if err != nil {
				return nil, err
			}
			r.ProcessedAt = &t
		}
		p.Refund = r
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
