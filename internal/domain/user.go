package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeMode is the per-user default settlement outcome applied when no
// explicit admin decision is supplied. It is a business override read at
// settlement time, not a market simulation.
type OutcomeMode string

const (
	OutcomeModeWin  OutcomeMode = "win"
	OutcomeModeLoss OutcomeMode = "loss"
)

// Valid reports whether m is a known outcome mode.
func (m OutcomeMode) Valid() bool {
	return m == OutcomeModeWin || m == OutcomeModeLoss
}

// Outcome converts the mode into the settlement outcome it dictates.
func (m OutcomeMode) Outcome() Outcome {
	if m == OutcomeModeWin {
		return OutcomeWin
	}
	return OutcomeLoss
}

// UserProfile is the balance/KYC/outcome-mode context the engine reads for a
// user. The surrounding platform owns the rest of the profile (email, KYC
// documents, and so on); only the fields the lifecycle manager needs appear
// here.
type UserProfile struct {
	ID          string          `json:"id"`
	Balance     decimal.Decimal `json:"balance"`
	KycApproved bool            `json:"kyc_approved"`
	OutcomeMode OutcomeMode     `json:"outcome_mode"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
