package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Payout computes the amount credited to the user at settlement.
//
// On a win the user receives the stake back plus stake × rate/100; on a loss
// the user receives the stake minus stake × rate/100. Both are rounded to 8
// decimal places. A payout rate above 100% would make the loss branch
// negative; the result is clamped at zero so settlement can never debit the
// user a second time.
func Payout(stake, payoutRatePercent decimal.Decimal, outcome domain.Outcome) decimal.Decimal {
	delta := stake.Mul(payoutRatePercent).Div(hundred)

	var out decimal.Decimal
	if outcome == domain.OutcomeWin {
		out = stake.Add(delta)
	} else {
		out = stake.Sub(delta)
	}
	out = out.Round(priceScale)

	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
