package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for payment persistence.
// Implementations must round-trip every field, including the refund sub-record.
type Repository interface {
	// Create creates a new payment
	Create(ctx context.Context, payment *Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// Update replaces an existing payment if the stored version still equals
	// payment.Version, and increments payment.Version on success. A stale
	// version fails with ErrConcurrentUpdate.
	Update(ctx context.Context, payment *Payment) error

	// List lists payments matching filter, newest first
	List(ctx context.Context, filter ListFilter) ([]*Payment, error)

	// Count counts payments matching filter, ignoring Limit and Offset
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines filters for listing payments. Zero values mean "any".
type ListFilter struct {
	CustomerID    string
	Status        *PaymentStatus
	Method        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	ExpiresBefore *time.Time
	Limit         int // 0 = no limit
	Offset        int
}

// Matches applies the filter predicates (logical AND) to p in memory.
func (f ListFilter) Matches(p *Payment) bool {
	if f.CustomerID != "" && p.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.Method != "" && p.Method != f.Method {
		return false
	}
	if f.CreatedFrom != nil && p.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && p.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.ExpiresBefore != nil && !p.ExpiresAt.Before(*f.ExpiresBefore) {
		return false
	}
	return true
}
