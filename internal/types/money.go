// README: Common money value object used across modules.
package types

import "github.com/shopspring/decimal"

type ID string

type Money struct {
	Amount   int64
	Currency string
}

var hundred = decimal.NewFromInt(100)

// WholeUnits rounds half-up to whole currency units and floors the result at zero.
// Amounts handled here are never negative before rounding except by subtraction
// overshoot, so rounding half away from zero is equivalent to half-up.
func WholeUnits(d decimal.Decimal) int64 {
	if d.IsNegative() {
		return 0
	}
	return d.Round(0).IntPart()
}

// PercentOf returns pct% of d.
func PercentOf(d, pct decimal.Decimal) decimal.Decimal {
	return d.Mul(pct).Div(hundred)
}

// ReduceByPercent returns d * (1 - pct/100).
func ReduceByPercent(d, pct decimal.Decimal) decimal.Decimal {
	return d.Sub(PercentOf(d, pct))
}

// ValidPercent reports whether pct lies in [0, 100].
func ValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}
