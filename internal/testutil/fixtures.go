package testutil

import (
	"sync"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// Epoch is the default start time of a Clock.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Dec parses s or panics.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr parses s and returns a pointer to it.
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

// NewTestPayment builds a pending card payment created at now.
func NewTestPayment(customerID, amount, currency string, now time.Time) *payment.Payment {
	p, err := payment.NewPayment(payment.NewPaymentParams{
		OrderID:     "order-" + customerID,
		CustomerID:  customerID,
		Amount:      Dec(amount),
		Fee:         decimal.Zero,
		Currency:    currency,
		Method:      "card",
		MaxAttempts: 3,
		Timeout:     30 * time.Minute,
		Now:         now,
	})
	if err != nil {
		panic(err)
	}
	return p
}

// NewCompletedPayment builds a payment that was charged successfully at now.
func NewCompletedPayment(customerID, amount, currency string, now time.Time) *payment.Payment {
	p := NewTestPayment(customerID, amount, currency, now)
	if err := p.StartAttempt(now); err != nil {
		panic(err)
	}
	if err := p.MarkCompleted("txn_test", map[string]any{"status": "approved"}, now); err != nil {
		panic(err)
	}
	return p
}
