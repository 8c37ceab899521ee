package controller

import (
	"time"

	appPayment "github.com/cassiomorais/payorders/internal/application/payment"
	"github.com/cassiomorais/payorders/internal/domain/method"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// Money travels as JSON numbers or strings and is decoded straight into
// decimal.Decimal. Business rules are checked by the service validator, so
// CreatePaymentRequest carries no tags.

// CreatePaymentRequest holds the input for creating a payment.
type CreatePaymentRequest struct {
	OrderID     string           `json:"order_id"`
	CustomerID  string           `json:"customer_id"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency"`
	Method      string           `json:"method"`
	Description string           `json:"description"`
}

// ProcessPaymentRequest carries instrument data passed through to the gateway.
type ProcessPaymentRequest struct {
	Token    string         `json:"token" validate:"max=512"`
	Metadata map[string]any `json:"metadata"`
}

// CancelPaymentRequest holds the optional cancellation reason.
type CancelPaymentRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RefundPaymentRequest holds the input for a refund.
type RefundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
	Reason string           `json:"reason" validate:"max=500"`
}

// --- Response DTOs ---

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Method        string          `json:"method"`
	Description   string          `json:"description,omitempty"`
	Status        string          `json:"status"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	CancelReason  *string         `json:"cancel_reason,omitempty"`
	Refund        *RefundResponse `json:"refund,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// RefundResponse represents a refund in API responses.
type RefundResponse struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason,omitempty"`
	Status        string          `json:"status"`
	RequestedAt   time.Time       `json:"requested_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Error         *string         `json:"error,omitempty"`
}

type CreatePaymentResponse struct {
	Payment    PaymentResponse `json:"payment"`
	PaymentURL string          `json:"payment_url"`
}

type ProcessPaymentResponse struct {
	Payment       PaymentResponse `json:"payment"`
	TransactionID string          `json:"transaction_id"`
}

type StatusResponse struct {
	Found   bool             `json:"found"`
	Payment *PaymentResponse `json:"payment,omitempty"`
}

type HistoryResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"has_more"`
}

type BreakdownResponse struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type StatisticsResponse struct {
	TotalPayments          int                          `json:"total_payments"`
	ByStatus               map[string]int               `json:"by_status"`
	TotalAmount            decimal.Decimal              `json:"total_amount"`
	CompletedAmount        decimal.Decimal              `json:"completed_amount"`
	AverageCompletedAmount decimal.Decimal              `json:"average_completed_amount"`
	ByMethod               map[string]BreakdownResponse `json:"by_method"`
	ByCurrency             map[string]BreakdownResponse `json:"by_currency"`
}

type MethodResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	MinAmount  decimal.Decimal `json:"min_amount"`
	MaxAmount  decimal.Decimal `json:"max_amount"`
	FeeRate    decimal.Decimal `json:"fee_rate"`
	Currencies []string        `json:"currencies"`
}

// ErrorResponse represents an error response. Details lists every failed
// rule for validation errors.
type ErrorResponse struct {
	Error   string        `json:"error"`
	Code    string        `json:"code"`
	Details []FieldDetail `json:"details,omitempty"`
}

type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// --- Conversion helpers ---

func (r CreatePaymentRequest) toService() appPayment.CreateRequest {
	return appPayment.CreateRequest{
		OrderID:     r.OrderID,
		CustomerID:  r.CustomerID,
		Email:       r.Email,
		Phone:       r.Phone,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Method:      r.Method,
		Description: r.Description,
	}
}

// FromPayment converts a domain payment through its sanitized view.
func FromPayment(p *payment.Payment) PaymentResponse {
	return FromView(appPayment.NewPaymentView(p))
}

// FromView converts a sanitized payment view to API response.
func FromView(v appPayment.PaymentView) PaymentResponse {
	resp := PaymentResponse{
		ID:            v.ID.String(),
		OrderID:       v.OrderID,
		CustomerID:    v.CustomerID,
		Email:         v.Email,
		Phone:         v.Phone,
		Amount:        v.Amount,
		Fee:           v.Fee,
		Total:         v.Total,
		Currency:      v.Currency,
		Method:        v.Method,
		Description:   v.Description,
		Status:        string(v.Status),
		TransactionID: v.TransactionID,
		CancelReason:  v.CancelReason,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		ExpiresAt:     v.ExpiresAt,
	}
	if r := v.Refund; r != nil {
		resp.Refund = &RefundResponse{
			ID:            r.ID.String(),
			Amount:        r.Amount,
			Reason:        r.Reason,
			Status:        string(r.Status),
			RequestedAt:   r.RequestedAt,
			ProcessedAt:   r.ProcessedAt,
			TransactionID: r.TransactionID,
			Error:         r.Error,
		}
	}
	return resp
}

// FromRefund converts a domain refund to API response.
func FromRefund(r *payment.Refund) RefundResponse {
	return RefundResponse{
		ID:            r.ID.String(),
		Amount:        r.Amount,
		Reason:        r.Reason,
		Status:        string(r.Status),
		RequestedAt:   r.RequestedAt,
		ProcessedAt:   r.ProcessedAt,
		TransactionID: r.TransactionID,
		Error:         r.Error,
	}
}

func FromHistory(page *appPayment.HistoryPage) HistoryResponse {
	resp := HistoryResponse{
		Payments: make([]PaymentResponse, 0, len(page.Payments)),
		Total:    page.Total,
		HasMore:  page.HasMore,
	}
	for _, v := range page.Payments {
		resp.Payments = append(resp.Payments, FromView(v))
	}
	return resp
}

func FromStatistics(s *appPayment.StatsReport) StatisticsResponse {
	resp := StatisticsResponse{
		TotalPayments:          s.TotalPayments,
		ByStatus:               make(map[string]int, len(s.ByStatus)),
		TotalAmount:            s.TotalAmount,
		CompletedAmount:        s.CompletedAmount,
		AverageCompletedAmount: s.AverageCompletedAmount,
		ByMethod:               breakdowns(s.ByMethod),
		ByCurrency:             breakdowns(s.ByCurrency),
	}
	for st, n := range s.ByStatus {
		resp.ByStatus[string(st)] = n
	}
	return resp
}

func breakdowns(in map[string]appPayment.Breakdown) map[string]BreakdownResponse {
	out := make(map[string]BreakdownResponse, len(in))
	for k, b := range in {
		out[k] = BreakdownResponse{Count: b.Count, Amount: b.Amount}
	}
	return out
}

func FromMethod(m method.Method) MethodResponse {
	return MethodResponse{
		ID:         m.ID,
		Name:       m.Name,
		MinAmount:  m.MinAmount,
		MaxAmount:  m.MaxAmount,
		FeeRate:    m.FeeRate,
		Currencies: m.Currencies,
	}
}
