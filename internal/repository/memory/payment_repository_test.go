package memory

import (
	"context"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newPayment(t *testing.T, customer, method string, createdAt time.Time) *payment.Payment {
	t.Helper()
	p, err := payment.NewPayment(payment.NewPaymentParams{
		OrderID:     "order-" + uuid.NewString()[:8],
		CustomerID:  customer,
		Amount:      decimal.NewFromInt(25),
		Fee:         decimal.RequireFromString("0.73"),
		Currency:    "USD",
		Method:      method,
		MaxAttempts: 3,
		Timeout:     time.Hour,
		Now:         createdAt,
	})
	require.NoError(t, err)
	return p
}

func TestPaymentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository()
	p := newPayment(t, "u1", "card", base)

	require.NoError(t, repo.Create(ctx, p))
	assert.Error(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("25.73")))

	// Mutating the returned copy must not leak into the store.
	got.Status = payment.StatusFailed
	again, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, again.Status)
}

func TestPaymentRepository_GetByID_NotFound(t *testing.T) {
	repo := NewPaymentRepository()
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
}

func TestPaymentRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository()
	p := newPayment(t, "u1", "card", base)

	assert.ErrorIs(t, repo.Update(ctx, p), domainErrors.ErrPaymentNotFound)
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, p.StartAttempt(base.Add(time.Minute)))
	require.NoError(t, p.MarkCompleted("txn_1", map[string]any{"status": "approved"}, base.Add(time.Minute)))
	_, err := p.RequestRefund(decimal.NewFromInt(10), "partial", base.Add(2*time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)
	require.NotNil(t, got.Refund)
	assert.Equal(t, payment.RefundPending, got.Refund.Status)
	assert.Equal(t, "txn_1", *got.TransactionID)
}

func TestPaymentRepository_UpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository()
	p := newPayment(t, "u1", "card", base)
	require.NoError(t, repo.Create(ctx, p))

	// Two writers read the same version.
	first, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, first.StartAttempt(base.Add(time.Minute)))
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 1, first.Version)

	require.NoError(t, second.MarkCancelled("buyer changed mind", base.Add(time.Minute)))
	assert.ErrorIs(t, repo.Update(ctx, second), domainErrors.ErrConcurrentUpdate)
	assert.Equal(t, 0, second.Version)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessing, got.Status)
	assert.Equal(t, 1, got.Version)

	require.NoError(t, first.MarkCompleted("txn_1", map[string]any{"status": "approved"}, base.Add(2*time.Minute)))
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 2, first.Version)
}

func TestPaymentRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository()

	for i := range 5 {
		require.NoError(t, repo.Create(ctx, newPayment(t, "u1", "card", base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Create(ctx, newPayment(t, "u1", "pix", base.Add(10*time.Hour))))
	require.NoError(t, repo.Create(ctx, newPayment(t, "u2", "card", base)))

	all, err := repo.List(ctx, payment.ListFilter{CustomerID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "not sorted newest first")
	}

	page, err := repo.List(ctx, payment.ListFilter{CustomerID: "u1", Method: "card", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(3*time.Hour), page[0].CreatedAt)

	n, err := repo.Count(ctx, payment.ListFilter{CustomerID: "u1", Method: "card", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	from := base.Add(2 * time.Hour)
	n, err = repo.Count(ctx, payment.ListFilter{CreatedFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	empty, err := repo.List(ctx, payment.ListFilter{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPaymentRepository_CancelledContext(t *testing.T) {
	repo := NewPaymentRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}
