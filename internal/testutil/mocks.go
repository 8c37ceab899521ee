package testutil

import (
	"context"
	"sync"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/internal/repository/memory"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is an in-memory payment.Repository whose calls can be
// overridden per test.
type MockPaymentRepository struct {
	*memory.PaymentRepository

	mu           sync.Mutex
	updateCalls  int
	CreateFunc   func(ctx context.Context, p *payment.Payment) error
	GetByIDFunc  func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	UpdateFunc   func(ctx context.Context, p *payment.Payment) error
	ListFunc     func(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error)
	CountFunc    func(ctx context.Context, filter payment.ListFilter) (int, error)
	history      map[uuid.UUID][]payment.PaymentStatus
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		PaymentRepository: memory.NewPaymentRepository(),
		history:           make(map[uuid.UUID][]payment.PaymentStatus),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	if err := m.PaymentRepository.Create(ctx, p); err != nil {
		return err
	}
	m.record(p)
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.PaymentRepository.GetByID(ctx, id)
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p)
	}
	if err := m.PaymentRepository.Update(ctx, p); err != nil {
		return err
	}
	m.record(p)
	return nil
}

func (m *MockPaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return m.PaymentRepository.List(ctx, filter)
}

func (m *MockPaymentRepository) Count(ctx context.Context, filter payment.ListFilter) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, filter)
	}
	return m.PaymentRepository.Count(ctx, filter)
}

// UpdateCalls returns how many times Update was called.
func (m *MockPaymentRepository) UpdateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCalls
}

// StatusHistory returns every persisted status of a payment, in order.
// Consecutive duplicates are collapsed.
func (m *MockPaymentRepository) StatusHistory(id uuid.UUID) []payment.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]payment.PaymentStatus(nil), m.history[id]...)
}

func (m *MockPaymentRepository) record(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history[p.ID]
	if len(h) == 0 || h[len(h)-1] != p.Status {
		m.history[p.ID] = append(h, p.Status)
	}
}

// --- Event Publisher Mock ---

// RecordingPublisher collects published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (r *RecordingPublisher) Publish(_ context.Context, evt event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of everything published so far.
func (r *RecordingPublisher) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// Names returns the published event names in order.
func (r *RecordingPublisher) Names() []event.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]event.Name, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Count returns how many events named name were published.
func (r *RecordingPublisher) Count(name event.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (r *RecordingPublisher) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
