package domain

import "errors"

var (
	// User-correctable errors: the caller must change something (complete
	// KYC, top up, wait for the open trade) before retrying.
	ErrKycRequired         = errors.New("kyc approval required")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrActiveTradeExists   = errors.New("an active trade already exists")
	ErrInvalidStakeOrPrice = errors.New("invalid stake, payout rate or price")

	// State-conflict errors: the caller holds a stale reference and should
	// refetch rather than retry the same mutation.
	ErrAlreadySettled  = errors.New("trade already settled")
	ErrTradeNotExpired = errors.New("trade has not expired")
	ErrNotFound        = errors.New("not found")

	// ErrLockHeld is returned when a distributed lock is already held by
	// another party.
	ErrLockHeld = errors.New("lock already held")
)
