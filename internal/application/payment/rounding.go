package payment

import (
	"strings"

	"github.com/cassiomorais/payorders/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// RoundingPolicy decides the precision of monetary values per currency.
type RoundingPolicy interface {
	// Places is the number of decimal places currency allows.
	Places(currency string) int32
	Round(amount decimal.Decimal, currency string) decimal.Decimal
}

// MinorUnitRounding rounds half away from zero to the currency's minor unit.
// Exponents overrides the ISO 4217 table for selected currencies.
type MinorUnitRounding struct {
	Exponents map[string]int32
}

// DefaultRounding uses the ISO 4217 exponents known to the domain.
func DefaultRounding() MinorUnitRounding {
	return MinorUnitRounding{}
}

func (r MinorUnitRounding) Places(currency string) int32 {
	if places, ok := r.Exponents[strings.ToUpper(currency)]; ok {
		return places
	}
	return payment.MinorUnits(currency)
}

func (r MinorUnitRounding) Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(r.Places(currency))
}

// fitsCurrency reports whether amount needs no rounding in currency.
func fitsCurrency(r RoundingPolicy, amount decimal.Decimal, currency string) bool {
	return amount.Equal(amount.Round(r.Places(currency)))
}
