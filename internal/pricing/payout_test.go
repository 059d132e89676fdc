package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/auricex/auricex/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPayoutWin(t *testing.T) {
	// stake = 100, rate = 80% -> 100 + 80 = 180
	got := Payout(dec("100"), dec("80"), domain.OutcomeWin)
	assert.True(t, got.Equal(dec("180")), "got %s", got)
}

func TestPayoutLoss(t *testing.T) {
	// stake = 100, rate = 80% -> 100 - 80 = 20
	got := Payout(dec("100"), dec("80"), domain.OutcomeLoss)
	assert.True(t, got.Equal(dec("20")), "got %s", got)
}

func TestPayoutLossClampsAtZero(t *testing.T) {
	// rate > 100% would produce a negative credit; the calculator clamps.
	got := Payout(dec("100"), dec("150"), domain.OutcomeLoss)
	assert.True(t, got.Equal(decimal.Zero), "got %s", got)
}

func TestPayoutRoundsToEightPlaces(t *testing.T) {
	// 0.00000001 + 0.00000001×0.33 = 0.0000000133, which rounds back to
	// the minimum currency unit.
	got := Payout(dec("0.00000001"), dec("33"), domain.OutcomeWin)
	assert.True(t, got.Equal(dec("0.00000001")), "got %s", got)
}

func TestPayoutMonotonicity(t *testing.T) {
	stakes := []string{"1", "50", "100", "2500.5", "0.001"}
	rates := []string{"10", "50", "80", "95", "100"}

	for _, s := range stakes {
		for _, r := range rates {
			stake := dec(s)
			rate := dec(r)
			win := Payout(stake, rate, domain.OutcomeWin)
			loss := Payout(stake, rate, domain.OutcomeLoss)

			assert.True(t, win.GreaterThan(stake), "win payout %s must exceed stake %s (rate %s)", win, stake, rate)
			assert.True(t, loss.LessThan(stake), "loss payout %s must be below stake %s (rate %s)", loss, stake, rate)
			assert.False(t, loss.IsNegative(), "loss payout %s must not be negative", loss)
		}
	}
}
