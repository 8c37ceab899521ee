package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
)

// PaymentRepository keeps payments in a map. Records go in and come out as
// clones, so callers never share state with the store.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*payment.Payment
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[uuid.UUID]*payment.Payment),
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[p.ID]; exists {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	r.payments[p.ID] = p.Clone()
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return p.Clone(), nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payments[p.ID]
	if !ok {
		return domainErrors.ErrPaymentNotFound
	}
	if stored.Version != p.Version {
		return fmt.Errorf("payment %s at version %d, have %d: %w", p.ID, stored.Version, p.Version, domainErrors.ErrConcurrentUpdate)
	}
	p.Version++
	r.payments[p.ID] = p.Clone()
	return nil
}

// List returns matches newest first, ties broken by id.
func (r *PaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches := r.match(filter)

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return []*payment.Payment{}, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (r *PaymentRepository) Count(ctx context.Context, filter payment.ListFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(r.match(filter)), nil
}

func (r *PaymentRepository) match(filter payment.ListFilter) []*payment.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*payment.Payment, 0)
	for _, p := range r.payments {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Len returns the number of stored payments.
func (r *PaymentRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.payments)
}
