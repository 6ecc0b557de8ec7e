package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ApplyPercent returns percent% of baseCents, rounded half-up to a cent.
// Negative inputs clamp to zero.
func ApplyPercent(baseCents int64, percent decimal.Decimal) int64 {
	if baseCents <= 0 || percent.Sign() <= 0 {
		return 0
	}
	discount := decimal.NewFromInt(baseCents).
		Mul(percent).
		Div(hundred).
		Round(0)
	result := discount.IntPart()
	if result < 0 {
		return 0
	}
	return result
}

// PercentFromFloat converts a stored percentage (e.g. 12.5) into a decimal.
func PercentFromFloat(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// ClampToBase caps a fixed discount so it never exceeds what it discounts.
func ClampToBase(discountCents, baseCents int64) int64 {
	if discountCents <= 0 || baseCents <= 0 {
		return 0
	}
	if discountCents > baseCents {
		return baseCents
	}
	return discountCents
}

// FormatCents renders cents as a dollar string for emails and payloads.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
