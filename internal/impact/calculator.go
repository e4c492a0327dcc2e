package impact

import "github.com/shopspring/decimal"

const (
	// Precision is the number of decimal places kept in offset figures.
	// An earlier revision rounded to 2 places; 4 is authoritative.
	Precision int32 = 4
)

var (
	// EmissionFactorKgPerM3 is the CO2e emitted pumping one cubic meter of water
	EmissionFactorKgPerM3 = decimal.RequireFromString("0.14")

	kgPerTon = decimal.NewFromInt(1000)
)

// CO2OffsetTons converts conserved water volume (m3) into tons of CO2e avoided.
// Negative volumes are treated as zero.
func CO2OffsetTons(impactQuantityM3 decimal.Decimal) decimal.Decimal {
	if !impactQuantityM3.IsPositive() {
		return decimal.Zero
	}
	return impactQuantityM3.
		Mul(EmissionFactorKgPerM3).
		Div(kgPerTon).
		Round(Precision)
}

// AmountPaid is the price of settling a whole project: price per credit times
// the project's impact quantity, floored at zero.
func AmountPaid(pricePerCredit, impactQuantity decimal.Decimal) decimal.Decimal {
	amount := pricePerCredit.Mul(impactQuantity)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
