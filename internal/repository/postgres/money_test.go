package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"whole", "100", "100"},
		{"two places", "100.50", "100.5"},
		{"cents only", "0.99", "0.99"},
		{"zero places currency", "1500", "1500"},
		{"three places currency", "12.345", "12.345"},
		{"numeric scale padding", "99.9900", "99.99"},
		{"whitespace", "  50.25  ", "50.25"},
		{"negative", "-10.50", "-10.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNumeric(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), "got %s", got)
		})
	}
}

func TestParseNumeric_Errors(t *testing.T) {
	for _, input := range []string{"", "   ", "abc", "1.2.3"} {
		_, err := parseNumeric(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestNumericString_IsExact(t *testing.T) {
	d := decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	assert.Equal(t, "0.3", numericString(d))
	assert.Nil(t, nullableNumeric(nil))
	amount := decimal.RequireFromString("12.50")
	assert.Equal(t, "12.5", *nullableNumeric(&amount))
}
