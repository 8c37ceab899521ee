package payment

import (
	"time"

	"github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the payment status in the state machine
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
	StatusExpired    PaymentStatus = "expired"
	StatusRefunded   PaymentStatus = "refunded"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []PaymentStatus{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
	StatusExpired,
	StatusRefunded,
}

var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending: {
		StatusProcessing,
		StatusCancelled,
		StatusExpired,
	},
	StatusProcessing: {
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		StatusExpired,
		StatusPending, // retryable gateway failure
	},
	StatusCompleted: {
		StatusRefunded,
	},
	StatusFailed:    {}, // Terminal state
	StatusCancelled: {}, // Terminal state
	StatusExpired:   {}, // Terminal state
	StatusRefunded:  {}, // Terminal state
}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether the charge workflow has ended.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo checks if status s may move to next
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment is one attempt to collect money for an order.
type Payment struct {
	ID              uuid.UUID
	OrderID         string
	CustomerID      string
	Email           string
	Phone           string
	Amount          decimal.Decimal
	Fee             decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	Method          string
	Description     string
	Status          PaymentStatus
	Attempts        int
	MaxAttempts     int
	TransactionID   *string
	GatewayResponse map[string]any
	LastError       *string
	CancelReason    *string
	Refund          *Refund
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
	// Version counts stored updates. Repositories only apply an Update whose
	// Version matches the stored one, then increment it.
	Version         int
}

// NewPaymentParams holds the already-validated input for a new payment.
type NewPaymentParams struct {
	OrderID     string
	CustomerID  string
	Email       string
	Phone       string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	Currency    string
	Method      string
	Description string
	MaxAttempts int
	Timeout     time.Duration
	Now         time.Time
}

// NewPayment creates a pending payment. Total is always Amount + Fee.
func NewPayment(params NewPaymentParams) (*Payment, error) {
	if !params.Amount.IsPositive() {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if params.Fee.IsNegative() {
		return nil, errors.NewValidationError("fee", "cannot be negative")
	}
	if params.MaxAttempts <= 0 {
		return nil, errors.NewValidationError("max_attempts", "must be greater than 0")
	}
	if params.Timeout <= 0 {
		return nil, errors.NewValidationError("timeout", "must be positive")
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Payment{
		ID:              uuid.New(),
		OrderID:         params.OrderID,
		CustomerID:      params.CustomerID,
		Email:           params.Email,
		Phone:           params.Phone,
		Amount:          params.Amount,
		Fee:             params.Fee,
		Total:           params.Amount.Add(params.Fee),
		Currency:        params.Currency,
		Method:          params.Method,
		Description:     params.Description,
		Status:          StatusPending,
		Attempts:        0,
		MaxAttempts:     params.MaxAttempts,
		GatewayResponse: make(map[string]any),
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(params.Timeout),
	}, nil
}

// CanTransitionTo checks if the payment can transition to the given status
func (p *Payment) CanTransitionTo(newStatus PaymentStatus) bool {
	return p.Status.CanTransitionTo(newStatus)
}

// TransitionTo transitions the payment to a new status
func (p *Payment) TransitionTo(newStatus PaymentStatus, now time.Time) error {
	if !p.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(p.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	p.Status = newStatus
	p.UpdatedAt = now
	return nil
}

// IsExpired reports whether the payment window has elapsed at now.
func (p *Payment) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// StartAttempt consumes one attempt and moves the payment to processing.
func (p *Payment) StartAttempt(now time.Time) error {
	if p.Attempts >= p.MaxAttempts {
		return errors.NewDomainError("attempts_exhausted", "no charge attempts left", errors.ErrInvalidStateTransition)
	}
	if err := p.TransitionTo(StatusProcessing, now); err != nil {
		return err
	}
	p.Attempts++
	return nil
}

// AttemptsExhausted reports whether no attempts remain.
func (p *Payment) AttemptsExhausted() bool {
	return p.Attempts >= p.MaxAttempts
}

// MarkCompleted records a successful charge.
func (p *Payment) MarkCompleted(transactionID string, response map[string]any, now time.Time) error {
	if err := p.TransitionTo(StatusCompleted, now); err != nil {
		return err
	}
	p.TransactionID = &transactionID
	p.setResponse(response)
	p.LastError = nil
	return nil
}

// MarkAttemptFailed records a failed charge. The payment fails for good once
// attempts are exhausted and returns to pending otherwise.
func (p *Payment) MarkAttemptFailed(errMsg string, response map[string]any, now time.Time) error {
	next := StatusPending
	if p.AttemptsExhausted() {
		next = StatusFailed
	}
	if err := p.TransitionTo(next, now); err != nil {
		return err
	}
	p.LastError = &errMsg
	p.setResponse(response)
	return nil
}

// MarkCancelled transitions the payment to cancelled status
func (p *Payment) MarkCancelled(reason string, now time.Time) error {
	if err := p.TransitionTo(StatusCancelled, now); err != nil {
		return err
	}
	p.CancelReason = &reason
	return nil
}

// MarkExpired transitions the payment to expired status
func (p *Payment) MarkExpired(now time.Time) error {
	return p.TransitionTo(StatusExpired, now)
}

func (p *Payment) setResponse(response map[string]any) {
	if response == nil {
		response = make(map[string]any)
	}
	p.GatewayResponse = response
}

// Clone returns a deep copy. Repositories hand out clones so callers never
// mutate stored state outside the service.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	c.TransactionID = clonePtr(p.TransactionID)
	c.LastError = clonePtr(p.LastError)
	c.CancelReason = clonePtr(p.CancelReason)
	if p.GatewayResponse != nil {
		c.GatewayResponse = make(map[string]any, len(p.GatewayResponse))
		for k, v := range p.GatewayResponse {
			c.GatewayResponse[k] = v
		}
	}
	if p.Refund != nil {
		r := *p.Refund
		r.ProcessedAt = clonePtr(p.Refund.ProcessedAt)
		r.TransactionID = clonePtr(p.Refund.TransactionID)
		r.Error = clonePtr(p.Refund.Error)
		c.Refund = &r
	}
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
