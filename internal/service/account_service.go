package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
)

// AccountService reads user balance context and applies the administrative
// write paths: ledger adjustments, outcome mode and the KYC flag.
type AccountService struct {
	users  domain.UserStore
	audit  domain.AuditStore
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewAccountService creates an AccountService. Bus and audit may be nil.
func NewAccountService(users domain.UserStore, audit domain.AuditStore, bus domain.SignalBus, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:  users,
		audit:  audit,
		bus:    bus,
		logger: logger.With(slog.String("component", "account_service")),
	}
}

// GetProfile returns the balance context for a user.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	return s.users.GetProfile(ctx, userID)
}

// AdjustBalance credits (positive amount) or debits (negative amount) the
// user's balance and returns the new balance. Deposit and withdrawal
// approvals from the back office land here. A zero amount is rejected.
func (s *AccountService) AdjustBalance(ctx context.Context, userID string, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, fmt.Errorf("account_service: zero adjustment: %w", domain.ErrInvalidStakeOrPrice)
	}

	var (
		balance decimal.Decimal
		err     error
	)
	if amount.IsNegative() {
		balance, err = s.users.Debit(ctx, userID, amount.Neg())
	} else {
		balance, err = s.users.Credit(ctx, userID, amount)
	}
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.InfoContext(ctx, "balance adjusted",
		slog.String("user_id", userID),
		slog.String("amount", amount.String()),
		slog.String("balance", balance.String()),
		slog.String("reason", reason),
	)

	s.record(ctx, "balance_adjusted", map[string]any{
		"user_id": userID,
		"amount":  amount.String(),
		"balance": balance.String(),
		"reason":  reason,
	})
	return balance, nil
}

// SetOutcomeMode updates the user's forced settlement mode.
func (s *AccountService) SetOutcomeMode(ctx context.Context, userID string, mode domain.OutcomeMode) error {
	if !mode.Valid() {
		return fmt.Errorf("account_service: unknown outcome mode %q: %w", mode, domain.ErrInvalidStakeOrPrice)
	}
	if err := s.users.SetOutcomeMode(ctx, userID, mode); err != nil {
		return err
	}

	s.record(ctx, "outcome_mode_set", map[string]any{
		"user_id": userID,
		"mode":    string(mode),
	})
	return nil
}

// SetKycApproved updates the user's KYC gate.
func (s *AccountService) SetKycApproved(ctx context.Context, userID string, approved bool) error {
	if err := s.users.SetKycApproved(ctx, userID, approved); err != nil {
		return err
	}

	s.record(ctx, "kyc_set", map[string]any{
		"user_id":  userID,
		"approved": approved,
	})
	return nil
}

// ListAudit returns audit entries for the admin console, newest first.
func (s *AccountService) ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.List(ctx, opts)
}

// record writes the audit entry and publishes the event, best-effort.
func (s *AccountService) record(ctx context.Context, event string, detail map[string]any) {
	if s.audit != nil {
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "audit write failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}
	if s.bus != nil {
		payload, err := json.Marshal(map[string]any{"event": event, "detail": detail})
		if err != nil {
			return
		}
		if err := s.bus.Publish(ctx, TradeChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "event publish failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}
}
