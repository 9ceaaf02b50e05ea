package domain

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NairaToKobo converts a naira amount at the API boundary into the kobo
// (minor-unit) int64 the ledger stores. Amounts with sub-kobo precision
// or non-positive values are rejected with ErrInvalidAmount.
func NairaToKobo(naira decimal.Decimal) (int64, error) {
	if naira.LessThanOrEqual(decimal.Zero) {
		return 0, ErrInvalidAmount
	}
	kobo := naira.Mul(hundred)
	if !kobo.IsInteger() {
		return 0, ErrInvalidAmount
	}
	if !kobo.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return kobo.IntPart(), nil
}

// KoboToNaira renders a stored kobo amount as exact naira for responses.
func KoboToNaira(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(hundred)
}
