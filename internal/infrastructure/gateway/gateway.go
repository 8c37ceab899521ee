package gateway

import (
	"context"

	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// Gateway performs charge and refund attempts against a payment network.
// A nil error means the attempt succeeded. On failure the Result may still be
// non-nil to carry the raw response.
type Gateway interface {
	// Name returns the gateway name.
	Name() string
	// AttemptCharge charges the payment total.
	AttemptCharge(ctx context.Context, p *payment.Payment, details ChargeDetails) (*Result, error)
	// AttemptRefund refunds part or all of a completed charge.
	AttemptRefund(ctx context.Context, p *payment.Payment, req RefundRequest) (*Result, error)
}

// ChargeDetails carries caller-supplied instrument data. It is passed through
// untouched; the orchestrator never stores it.
type ChargeDetails struct {
	Token    string         `json:"token,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RefundRequest describes a refund attempt.
type RefundRequest struct {
	RefundID      string          `json:"refund_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason,omitempty"`
}

// Result is what a gateway returned.
type Result struct {
	TransactionID string
	Response      map[string]any
}
