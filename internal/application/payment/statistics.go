package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// StatsOptions narrows the statistics window. Zero values mean "any".
type StatsOptions struct {
	StartDate *time.Time
	EndDate   *time.Time
	UserID    string
}

// Breakdown aggregates one method or currency.
type Breakdown struct {
	Count  int
	Amount decimal.Decimal
}

// StatsReport is computed from the repository on every call, so it always
// agrees with the write path. Amounts are summed across currencies as-is.
type StatsReport struct {
	TotalPayments          int
	ByStatus               map[payment.PaymentStatus]int
	TotalAmount            decimal.Decimal
	CompletedAmount        decimal.Decimal
	AverageCompletedAmount decimal.Decimal
	ByMethod               map[string]Breakdown
	ByCurrency             map[string]Breakdown
}

// GetStatistics aggregates every payment matching opts.
func (s *Service) GetStatistics(ctx context.Context, opts StatsOptions) (*StatsReport, error) {
	payments, err := s.repo.List(ctx, payment.ListFilter{
		CustomerID:  opts.UserID,
		CreatedFrom: opts.StartDate,
		CreatedTo:   opts.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	report := &StatsReport{
		ByStatus:               make(map[payment.PaymentStatus]int, len(payment.AllStatuses)),
		TotalAmount:            decimal.Zero,
		CompletedAmount:        decimal.Zero,
		AverageCompletedAmount: decimal.Zero,
		ByMethod:               make(map[string]Breakdown),
		ByCurrency:             make(map[string]Breakdown),
	}
	for _, st := range payment.AllStatuses {
		report.ByStatus[st] = 0
	}

	completed := 0
	for _, p := range payments {
		report.TotalPayments++
		report.ByStatus[p.Status]++
		report.TotalAmount = report.TotalAmount.Add(p.Amount)

		if p.Status == payment.StatusCompleted {
			completed++
			report.CompletedAmount = report.CompletedAmount.Add(p.Amount)
		}

		report.ByMethod[p.Method] = report.ByMethod[p.Method].add(p.Amount)
		report.ByCurrency[p.Currency] = report.ByCurrency[p.Currency].add(p.Amount)
	}

	if completed > 0 {
		report.AverageCompletedAmount = report.CompletedAmount.DivRound(decimal.NewFromInt(int64(completed)), 2)
	}
	return report, nil
}

func (b Breakdown) add(amount decimal.Decimal) Breakdown {
	b.Count++
	b.Amount = b.Amount.Add(amount)
	return b
}
