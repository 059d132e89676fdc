package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a binary-options trade.
type Side string

const (
	SideLong  Side = "long"  // pays out when the price closes above the reference
	SideShort Side = "short" // pays out when the price closes below the reference
)

// Valid reports whether s is a known trade side.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Outcome is the settlement result of a trade.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeWin || o == OutcomeLoss
}

// TradeStatus tracks the trade lifecycle.
type TradeStatus string

const (
	// TradeStatusPendingApproval is admitted by the state machine for an
	// admin-gated creation flow. The current flow auto-approves, so new
	// trades are created directly in TradeStatusActive.
	TradeStatusPendingApproval TradeStatus = "pending_approval"

	// TradeStatusActive means the stake has been debited and the trade is
	// awaiting settlement.
	TradeStatusActive TradeStatus = "active"

	// TradeStatusCompleted means the trade has been settled: outcome and
	// closing price are set and the payout has been credited.
	TradeStatusCompleted TradeStatus = "completed"

	// TradeStatusCancelled means an administrator rejected the trade and
	// the stake was refunded in full.
	TradeStatusCancelled TradeStatus = "cancelled"
)

// ApprovalStatus is the administrative gate on a trade, independent of the
// lifecycle status.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Trade is a single binary-options position. Stake, payout rate, reference
// price and expiry are fixed at creation; closing price, outcome and payout
// are set exactly once, during the transition into completed.
type Trade struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	AssetClass string `json:"asset_class"` // "crypto" or "gold"
	AssetID    string `json:"asset_id"`    // feed identifier, e.g. "BTCUSDT"
	Symbol     string `json:"symbol"`      // display symbol, e.g. "BTC/USD"

	Side       Side            `json:"side"`
	Stake      decimal.Decimal `json:"stake"`
	PayoutRate decimal.Decimal `json:"payout_rate"` // percent of stake

	ReferencePrice decimal.Decimal  `json:"reference_price"`
	ClosingPrice   *decimal.Decimal `json:"closing_price,omitempty"`
	Payout         *decimal.Decimal `json:"payout,omitempty"` // amount credited at settlement

	TimeFrame time.Duration `json:"time_frame"`
	ExpiresAt time.Time     `json:"expires_at"`

	Status   TradeStatus    `json:"status"`
	Approval ApprovalStatus `json:"approval"`
	Outcome  Outcome        `json:"outcome,omitempty"` // empty until settled

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the trade's time frame has elapsed as of now.
func (t Trade) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Settleable reports whether the trade can still enter settlement.
func (t Trade) Settleable() bool {
	return t.Status == TradeStatusActive && t.Approval == ApprovalApproved
}
