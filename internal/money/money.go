// Package money converts between decimal amounts and the int64 minor units
// (paisa) that orders and payments persist.
package money

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/sanziv9999/GharkoSwad/internal/apperr"
)

const minorDigits = 2

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal converts d to minor units. Amounts with more precision than
// one minor unit are rejected rather than rounded.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Round(minorDigits)) {
		return 0, apperr.Newf(apperr.CodeValidation, "amount %s has more than %d decimal places", d.String(), minorDigits)
	}
	return toMinor(d.Shift(minorDigits))
}

// Mul returns unitMinor * qty, failing instead of wrapping on overflow.
func Mul(unitMinor int64, qty int) (int64, error) {
	return toMinor(decimal.NewFromInt(unitMinor).Mul(decimal.NewFromInt(int64(qty))))
}

// Add returns a + b, failing instead of wrapping on overflow.
func Add(a, b int64) (int64, error) {
	return toMinor(decimal.NewFromInt(a).Add(decimal.NewFromInt(b)))
}

func toMinor(d decimal.Decimal) (int64, error) {
	if d.GreaterThan(maxMinor) || d.LessThan(minMinor) {
		return 0, apperr.Newf(apperr.CodeValidation, "amount %s is out of range", d.Shift(-minorDigits).String())
	}
	return d.IntPart(), nil
}

// FromFloat converts a catalog price to minor units, rounding half away from zero.
func FromFloat(f float64) int64 {
	return decimal.NewFromFloat(f).Round(minorDigits).Shift(minorDigits).IntPart()
}

func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorDigits)
}

func ToFloat(minor int64) float64 {
	return ToDecimal(minor).InexactFloat64()
}

// Format renders minor units with exactly two decimals, e.g. 1300 -> "13.00".
func Format(minor int64) string {
	return ToDecimal(minor).StringFixed(minorDigits)
}
