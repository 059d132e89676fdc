package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts carries pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists trades. Open, Settle and Reject are composite
// operations: the ledger mutation and the trade state transition happen in
// one storage transaction, so a partial credit or a credit without a
// transition cannot be observed.
type TradeStore interface {
	// Open debits the stake from the owner's balance and inserts the trade
	// atomically. It returns ErrInsufficientFunds when the balance cannot
	// cover the stake, ErrActiveTradeExists when the owner already has an
	// active trade, and ErrNotFound for an unknown owner.
	Open(ctx context.Context, t Trade) (Trade, error)

	// Settle transitions the trade from active to completed, recording the
	// outcome, closing price and payout, and credits the payout to the
	// owner, all atomically. The transition is a compare-and-swap on
	// status; when the trade is no longer active it returns
	// ErrAlreadySettled without crediting.
	Settle(ctx context.Context, id string, outcome Outcome, closingPrice, payout decimal.Decimal) (Trade, error)

	// Reject transitions the trade from active to cancelled and refunds
	// the original stake atomically. Returns ErrAlreadySettled when the
	// trade is no longer active.
	Reject(ctx context.Context, id string) (Trade, error)

	GetByID(ctx context.Context, id string) (Trade, error)

	// GetActive returns the user's single active trade, or ErrNotFound.
	GetActive(ctx context.Context, userID string) (Trade, error)

	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Trade, error)
	ListByStatus(ctx context.Context, status TradeStatus, opts ListOpts) ([]Trade, error)

	// ListExpired returns up to limit active trades whose expiry is at or
	// before asOf, oldest first.
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]Trade, error)

	// ListSettledBefore and DeleteSettledBefore support cold-storage
	// archival of completed/cancelled trades.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error)
}

// UserStore reads and mutates the per-user balance context. Credit and Debit
// are the ledger contract: atomic read-modify-write, never leaving the
// balance negative.
type UserStore interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)

	// Debit atomically decreases the balance and returns the new balance.
	// It returns ErrInsufficientFunds without mutating anything when the
	// current balance is below amount.
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	// Credit atomically increases the balance and returns the new balance.
	// Amount may be zero but never negative.
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	SetOutcomeMode(ctx context.Context, userID string, mode OutcomeMode) error
	SetKycApproved(ctx context.Context, userID string, approved bool) error
}

// AuditEntry is one immutable audit-log record.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore appends and lists audit entries.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
