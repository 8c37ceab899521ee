package method

import (
	"slices"
	"strings"

	"github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// Method is an accepted way to pay. Immutable once registered.
type Method struct {
	ID         string
	Name       string
	Enabled    bool
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	FeeRate    decimal.Decimal // fraction, e.g. 0.029
	Currencies []string
}

// Accepts reports whether the method takes payments in the given currency.
func (m Method) Accepts(currency string) bool {
	return slices.Contains(m.Currencies, strings.ToUpper(currency))
}

// InBounds reports whether amount lies within [MinAmount, MaxAmount].
// A zero MaxAmount means no upper bound.
func (m Method) InBounds(amount decimal.Decimal) bool {
	if amount.LessThan(m.MinAmount) {
		return false
	}
	if !m.MaxAmount.IsZero() && amount.GreaterThan(m.MaxAmount) {
		return false
	}
	return true
}

// Fee computes the unrounded fee for amount.
func (m Method) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(m.FeeRate)
}

func (m Method) validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.NewValidationError("id", "cannot be empty")
	}
	if m.FeeRate.IsNegative() || m.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.NewValidationError("fee_rate", "must be in [0, 1)")
	}
	if m.MinAmount.IsNegative() {
		return errors.NewValidationError("min_amount", "cannot be negative")
	}
	if !m.MaxAmount.IsZero() && m.MaxAmount.LessThan(m.MinAmount) {
		return errors.NewValidationError("max_amount", "must be greater than min_amount")
	}
	if len(m.Currencies) == 0 {
		return errors.NewValidationError("currencies", "at least one currency is required")
	}
	return nil
}
