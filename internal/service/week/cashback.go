package week

import "github.com/shopspring/decimal"

// Tier thresholds and amounts for the weekly cashback rule. Winners above a
// threshold are charged into the pool, losers below the mirrored threshold
// are credited from it. This table is the piece of club policy most likely
// to change, so it lives here in one place.
var (
	tierMajor = decimal.NewFromInt(500)
	tierMinor = decimal.NewFromInt(200)

	chargeMajor = decimal.NewFromInt(100)
	chargeMinor = decimal.NewFromInt(50)
)

// CashbackFor maps a player's weekly session total to the adjustment applied
// to their running total and the matching contribution to the pool. Tiers
// are inclusive-descending; the first match wins.
func CashbackFor(sessionTotal decimal.Decimal) (adjustment, poolContribution decimal.Decimal) {
	switch {
	case sessionTotal.GreaterThanOrEqual(tierMajor):
		return chargeMajor.Neg(), chargeMajor
	case sessionTotal.GreaterThanOrEqual(tierMinor):
		return chargeMinor.Neg(), chargeMinor
	case sessionTotal.LessThanOrEqual(tierMajor.Neg()):
		return chargeMajor, chargeMajor.Neg()
	case sessionTotal.LessThanOrEqual(tierMinor.Neg()):
		return chargeMinor, chargeMinor.Neg()
	default:
		return decimal.Zero, decimal.Zero
	}
}
