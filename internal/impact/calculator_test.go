package impact

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCO2OffsetTons(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"zero volume", "0", "0"},
		{"scenario project", "500", "0.07"},
		{"large ranch", "15000", "2.1"},
		{"rounds to four places", "1", "0.0001"},
		{"half rounds away from zero", "0.5", "0.0001"},
		{"below precision", "0.1", "0"},
		{"fractional volume", "12345.678", "1.7284"},
		{"negative clamps to zero", "-500", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CO2OffsetTons(d(tt.input))
			assert.True(t, got.Equal(d(tt.expected)), "got %s want %s", got, tt.expected)
			assert.False(t, got.IsNegative())
		})
	}
}

func TestCO2OffsetTons_Monotonic(t *testing.T) {
	prev := CO2OffsetTons(decimal.Zero)
	for i := int64(1); i <= 5000; i += 7 {
		cur := CO2OffsetTons(decimal.NewFromInt(i))
		assert.True(t, cur.GreaterThanOrEqual(prev), "offset decreased at %d: %s < %s", i, cur, prev)
		prev = cur
	}
}

func TestAmountPaid(t *testing.T) {
	assert.True(t, AmountPaid(d("10"), d("500")).Equal(d("5000")))
	assert.True(t, AmountPaid(d("25.50"), d("15000")).Equal(d("382500")))
	assert.True(t, AmountPaid(d("10"), decimal.Zero).IsZero())
	assert.True(t, AmountPaid(d("-1"), d("10")).IsZero())
}
