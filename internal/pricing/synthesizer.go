// Package pricing implements the monetary arithmetic of settlement: the
// closing-price synthesizer and the payout calculator. All results are
// rounded to 8 decimal places, the smallest unit of the platform's quote
// currency.
package pricing

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
)

// priceScale is the number of decimal places prices and amounts are rounded to.
const priceScale = 8

// Drift bounds for the synthesized move, as a fraction of the reference
// price. The move is always large enough to be visible and small enough to
// be plausible for a short time frame.
const (
	minDrift = 0.005
	maxDrift = 0.01
)

// Synthesizer derives a closing price consistent with a forced outcome. It
// is a display/consistency artifact, not a market tick: the UI shows a price
// move congruent with the outcome that was decided independently of any
// market data.
type Synthesizer struct {
	// rnd returns a uniform float64 in [0, 1). Injected for tests.
	rnd func() float64
}

// NewSynthesizer creates a Synthesizer using the default random source.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{rnd: rand.Float64}
}

// NewSynthesizerWithRand creates a Synthesizer with a caller-supplied random
// source returning uniform values in [0, 1).
func NewSynthesizerWithRand(rnd func() float64) *Synthesizer {
	return &Synthesizer{rnd: rnd}
}

// ClosingPrice returns a closing price that, compared against referencePrice
// for the given side, reproduces the given outcome. The drift r is drawn
// uniformly from [minDrift, maxDrift]; a winning long or losing short closes
// at reference × (1 + r), a winning short or losing long at
// reference × (1 − r). The result is rounded to 8 decimal places and is
// guaranteed positive.
func (s *Synthesizer) ClosingPrice(referencePrice decimal.Decimal, side domain.Side, outcome domain.Outcome) (decimal.Decimal, error) {
	if !referencePrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("pricing: reference price must be positive, got %s", referencePrice)
	}
	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("pricing: unknown side %q", side)
	}
	if !outcome.Valid() {
		return decimal.Zero, fmt.Errorf("pricing: unknown outcome %q", outcome)
	}

	r := minDrift + s.rnd()*(maxDrift-minDrift)

	up := (outcome == domain.OutcomeWin) == (side == domain.SideLong)
	factor := 1 + r
	if !up {
		factor = 1 - r
	}

	closing := referencePrice.Mul(decimal.NewFromFloat(factor)).Round(priceScale)

	// For r in [0.005, 0.01] the factor stays well above zero, so a
	// non-positive closing price is unreachable. Guard anyway: a price of
	// zero would break the outcome-consistency property downstream.
	if !closing.IsPositive() {
		return decimal.Zero, fmt.Errorf("pricing: synthesized non-positive closing price %s from reference %s", closing, referencePrice)
	}
	return closing, nil
}

// OutcomeFromPrices recomputes the win/loss outcome implied by a reference
// and closing price for the given side. It is the inverse of ClosingPrice
// and is used to verify outcome consistency.
func OutcomeFromPrices(referencePrice, closingPrice decimal.Decimal, side domain.Side) domain.Outcome {
	rose := closingPrice.GreaterThan(referencePrice)
	if (side == domain.SideLong) == rose {
		return domain.OutcomeWin
	}
	return domain.OutcomeLoss
}
