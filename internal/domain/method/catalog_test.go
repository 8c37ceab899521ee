package method

import (
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/payorders/internal/domain/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMethod(id string, enabled bool, min, max string, currencies ...string) Method {
	return Method{
		ID:         id,
		Name:       id,
		Enabled:    enabled,
		MinAmount:  decimal.RequireFromString(min),
		MaxAmount:  decimal.RequireFromString(max),
		FeeRate:    decimal.RequireFromString("0.01"),
		Currencies: currencies,
	}
}

func TestCatalog_RegisterAndGet(t *testing.T) {
	c, err := NewCatalog(testMethod("card", true, "1", "100", "usd"))
	require.NoError(t, err)

	m, err := c.Get("card")
	require.NoError(t, err)
	assert.Equal(t, []string{"USD"}, m.Currencies)
	assert.True(t, m.Accepts("usd"))
}

func TestCatalog_Get_NotFound(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	_, err = c.Get("missing")
	assert.True(t, errors.Is(err, domainErrors.ErrMethodNotFound))
}

func TestCatalog_Register_Duplicate(t *testing.T) {
	c, err := NewCatalog(testMethod("card", true, "1", "100", "USD"))
	require.NoError(t, err)

	err = c.Register(testMethod("card", true, "1", "100", "USD"))
	assert.True(t, errors.Is(err, domainErrors.ErrMethodExists))
}

func TestCatalog_Register_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		m     Method
		field string
	}{
		{"empty id", testMethod("", true, "1", "100", "USD"), "id"},
		{"no currencies", testMethod("x", true, "1", "100"), "currencies"},
		{"max below min", testMethod("x", true, "10", "5", "USD"), "max_amount"},
		{"fee rate too high", Method{ID: "x", FeeRate: decimal.NewFromInt(1), Currencies: []string{"USD"}}, "fee_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := NewCatalog()
			err := c.Register(tt.m)

			var ve *domainErrors.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCatalog_ListAvailable(t *testing.T) {
	c, err := NewCatalog(
		testMethod("card", true, "1", "100", "USD", "EUR"),
		testMethod("bank", true, "50", "1000", "USD"),
		testMethod("disabled", false, "1", "100", "USD"),
		testMethod("pix", true, "1", "100", "BRL"),
	)
	require.NoError(t, err)

	tests := []struct {
		name     string
		currency string
		amount   string
		expected []string
	}{
		{"small usd", "USD", "10", []string{"card"}},
		{"medium usd", "USD", "75", []string{"bank", "card"}},
		{"large usd", "USD", "500", []string{"bank"}},
		{"eur", "eur", "10", []string{"card"}},
		{"brl", "BRL", "10", []string{"pix"}},
		{"unknown currency", "JPY", "10", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ListAvailable(tt.currency, decimal.RequireFromString(tt.amount))
			var ids []string
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestMethod_InBounds_NoUpperLimit(t *testing.T) {
	m := testMethod("x", true, "1", "0", "USD")

	assert.True(t, m.InBounds(decimal.NewFromInt(1_000_000)))
	assert.False(t, m.InBounds(decimal.RequireFromString("0.99")))
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Len(t, c.All(), 4)
	m, err := c.Get("bank_transfer")
	require.NoError(t, err)
	assert.True(t, m.FeeRate.Equal(decimal.RequireFromString("0.006")))
}
