package payment_test

import (
	"context"
	"testing"
	"time"

	paymentApp "github.com/cassiomorais/payorders/internal/application/payment"
	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	domainPayment "github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/cassiomorais/payorders/internal/infrastructure/gateway"
	"github.com/cassiomorais/payorders/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t, gateway.WithChargeOutcomes(nil))
	id := env.completedPayment(t)

	view, err := env.svc.GetStatus(context.Background(), id)
	require.NoError(t, err)
	require.True(t, view.Found)
	assert.Equal(t, id, view.Payment.ID)
	assert.Equal(t, domainPayment.StatusCompleted, view.Payment.Status)
	assert.NotNil(t, view.Payment.TransactionID)

	missing, err := env.svc.GetStatus(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Nil(t, missing.Payment)
}

func TestGetStatus_ExpiresLazily(t *testing.T) {
	env := newTestEnv(t)
	id := env.createPayment(t)
	env.clock.Advance(time.Hour)

	view, err := env.svc.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domainPayment.StatusExpired, view.Payment.Status)
	assert.Equal(t, domainPayment.StatusExpired, env.load(t, id).Status)
}

func TestGetUserHistory(t *testing.T) {
	env := newTestEnv(t, gateway.WithFailureRate(0))
	ctx := context.Background()

	var ids []uuid.UUID
	for range 25 {
		ids = append(ids, env.createPayment(t))
		env.clock.Advance(time.Second)
	}
	other := validRequest()
	other.CustomerID = "user-2"
	_, err := env.svc.Create(ctx, other)
	require.NoError(t, err)

	_, err = env.svc.Process(ctx, ids[0], gateway.ChargeDetails{})
	require.NoError(t, err)

	page, err := env.svc.GetUserHistory(ctx, "user-1", paymentApp.HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Len(t, page.Payments, 20)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[24], page.Payments[0].ID, "newest first")

	last, err := env.svc.GetUserHistory(ctx, "user-1", paymentApp.HistoryOptions{Limit: 20, Offset: 20})
	require.NoError(t, err)
	assert.Len(t, last.Payments, 5)
	assert.False(t, last.HasMore)
	assert.Equal(t, ids[0], last.Payments[4].ID)

	completed := domainPayment.StatusCompleted
	filtered, err := env.svc.GetUserHistory(ctx, "user-1", paymentApp.HistoryOptions{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Total)
	require.Len(t, filtered.Payments, 1)
	assert.Equal(t, ids[0], filtered.Payments[0].ID)

	start := testutil.Epoch.Add(10 * time.Second)
	end := testutil.Epoch.Add(14 * time.Second)
	window, err := env.svc.GetUserHistory(ctx, "user-1", paymentApp.HistoryOptions{StartDate: &start, EndDate: &end, Method: "bank_transfer"})
	require.NoError(t, err)
	assert.Equal(t, 5, window.Total)

	capped, err := env.svc.GetUserHistory(ctx, "user-1", paymentApp.HistoryOptions{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, capped.Payments, 25)

	none, err := env.svc.GetUserHistory(ctx, "nobody", paymentApp.HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Total)
	assert.Empty(t, none.Payments)
	assert.False(t, none.HasMore)
}

func TestGetUserHistory_BlankUser(t *testing.T) {
	env := newTestEnv(t)
	env.createPayment(t)

	for _, userID := range []string{"", "   "} {
		page, err := env.svc.GetUserHistory(context.Background(), userID, paymentApp.HistoryOptions{})
		assert.Nil(t, page)
		var verr *domainErrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "user_id", verr.Fields[0].Field)
	}
}

func TestGetStatistics(t *testing.T) {
	env := newTestEnv(t, gateway.WithFailureRate(0))
	ctx := context.Background()

	create := func(customer, amount, currency, methodID string) uuid.UUID {
		t.Helper()
		req := validRequest()
		req.CustomerID = customer
		req.Amount = testutil.DecPtr(amount)
		req.Currency = currency
		req.Method = methodID
		res, err := env.svc.Create(ctx, req)
		require.NoError(t, err)
		return res.Payment.ID
	}

	a := create("user-1", "100.00", "USD", "card")
	b := create("user-1", "50.00", "USD", "card")
	c := create("user-2", "200.00", "BRL", "pix")
	d := create("user-2", "30.00", "EUR", "bank_transfer")
	create("user-1", "10.00", "USD", "paypal")

	for _, id := range []uuid.UUID{a, b, c} {
		_, err := env.svc.Process(ctx, id, gateway.ChargeDetails{})
		require.NoError(t, err)
	}
	_, err := env.svc.Cancel(ctx, d, "no longer needed")
	require.NoError(t, err)
	_, err = env.svc.RequestRefund(ctx, b, testutil.Dec("50.00"), "returned")
	require.NoError(t, err)

	report, err := env.svc.GetStatistics(ctx, paymentApp.StatsOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, report.TotalPayments)
	assert.Len(t, report.ByStatus, len(domainPayment.AllStatuses))
	assert.Equal(t, 2, report.ByStatus[domainPayment.StatusCompleted])
	assert.Equal(t, 1, report.ByStatus[domainPayment.StatusRefunded])
	assert.Equal(t, 1, report.ByStatus[domainPayment.StatusCancelled])
	assert.Equal(t, 1, report.ByStatus[domainPayment.StatusPending])
	assert.Equal(t, 0, report.ByStatus[domainPayment.StatusFailed])

	assert.True(t, report.TotalAmount.Equal(testutil.Dec("390")), report.TotalAmount.String())
	assert.True(t, report.CompletedAmount.Equal(testutil.Dec("300")), report.CompletedAmount.String())
	assert.True(t, report.AverageCompletedAmount.Equal(testutil.Dec("150")), report.AverageCompletedAmount.String())

	assert.Equal(t, 2, report.ByMethod["card"].Count)
	assert.True(t, report.ByMethod["card"].Amount.Equal(testutil.Dec("150")))
	assert.Equal(t, 3, report.ByCurrency["USD"].Count)
	assert.True(t, report.ByCurrency["BRL"].Amount.Equal(testutil.Dec("200")))

	user2, err := env.svc.GetStatistics(ctx, paymentApp.StatsOptions{UserID: "user-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, user2.TotalPayments)
	assert.True(t, user2.CompletedAmount.Equal(testutil.Dec("200")))

	future := testutil.Epoch.Add(time.Hour)
	empty, err := env.svc.GetStatistics(ctx, paymentApp.StatsOptions{StartDate: &future})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalPayments)
	assert.True(t, empty.AverageCompletedAmount.IsZero())
}
