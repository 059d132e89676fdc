// Package service implements the trade lifecycle: opening against the
// balance ledger, forced-outcome settlement, administrative rejection and the
// expiry sweep.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
	"github.com/auricex/auricex/internal/pricing"
)

// Event bus channels and streams used by the lifecycle.
const (
	TradeChannel     = "trades"
	SettlementStream = "settlements"
)

// Notifier receives lifecycle alerts. Delivery is best-effort; a notifier
// failure never fails the operation that triggered it.
type Notifier interface {
	TradeOpened(ctx context.Context, t domain.Trade) error
	TradeSettled(ctx context.Context, t domain.Trade) error
	TradeRejected(ctx context.Context, t domain.Trade) error
}

// Params are the trading limits enforced at open.
type Params struct {
	MinStake          decimal.Decimal
	MaxStake          decimal.Decimal // zero disables the upper bound
	DefaultPayoutRate decimal.Decimal
	MaxPriceAge       time.Duration
	TimeFrames        []time.Duration
	OpenLockTTL       time.Duration
}

// OpenRequest carries everything needed to open a trade.
type OpenRequest struct {
	UserID     string
	AssetClass string
	AssetID    string
	Symbol     string
	Side       domain.Side
	Stake      decimal.Decimal
	PayoutRate decimal.Decimal // zero means use the default
	TimeFrame  time.Duration
}

// TradeService manages the trade lifecycle.
type TradeService struct {
	trades   domain.TradeStore
	users    domain.UserStore
	audit    domain.AuditStore
	prices   domain.PriceCache
	locks    domain.LockManager
	bus      domain.SignalBus
	notifier Notifier
	synth    *pricing.Synthesizer
	policy   OutcomePolicy
	params   Params
	logger   *slog.Logger
	now      func() time.Time
}

// NewTradeService creates a TradeService. The bus and notifier may be nil;
// events are then simply not fanned out.
func NewTradeService(
	trades domain.TradeStore,
	users domain.UserStore,
	audit domain.AuditStore,
	prices domain.PriceCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier Notifier,
	params Params,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades:   trades,
		users:    users,
		audit:    audit,
		prices:   prices,
		locks:    locks,
		bus:      bus,
		notifier: notifier,
		synth:    pricing.NewSynthesizer(),
		params:   params,
		logger:   logger.With(slog.String("component", "trade_service")),
		now:      time.Now,
	}
}

// Open validates the request, takes the per-user lock, settles any expired
// leftover trade for the user, and opens the trade with the cached feed price
// as reference. The stake is debited in the same storage transaction that
// inserts the trade.
func (s *TradeService) Open(ctx context.Context, req OpenRequest) (domain.Trade, error) {
	if err := s.validateOpen(req); err != nil {
		return domain.Trade{}, err
	}

	unlock, err := s.locks.Acquire(ctx, "open:"+req.UserID, s.params.OpenLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.Trade{}, domain.ErrActiveTradeExists
		}
		return domain.Trade{}, fmt.Errorf("trade_service: open lock: %w", err)
	}
	defer unlock()

	// A user whose previous trade expired but has not been swept yet should
	// not be blocked from opening. Settle it now rather than waiting for the
	// sweeper.
	if err := s.settleExpiredForUser(ctx, req.UserID); err != nil {
		return domain.Trade{}, err
	}

	profile, err := s.users.GetProfile(ctx, req.UserID)
	if err != nil {
		return domain.Trade{}, err
	}
	if !profile.KycApproved {
		return domain.Trade{}, domain.ErrKycRequired
	}

	refPrice, err := s.referencePrice(ctx, req.AssetID)
	if err != nil {
		return domain.Trade{}, err
	}

	rate := req.PayoutRate
	if rate.IsZero() {
		rate = s.params.DefaultPayoutRate
	}

	now := s.now().UTC()
	trade := domain.Trade{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		AssetClass:     req.AssetClass,
		AssetID:        req.AssetID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		Stake:          req.Stake,
		PayoutRate:     rate,
		ReferencePrice: refPrice,
		TimeFrame:      req.TimeFrame,
		ExpiresAt:      now.Add(req.TimeFrame),
		Status:         domain.TradeStatusActive,
		Approval:       domain.ApprovalApproved,
	}

	opened, err := s.trades.Open(ctx, trade)
	if err != nil {
		return domain.Trade{}, err
	}

	s.logger.InfoContext(ctx, "trade opened",
		slog.String("trade_id", opened.ID),
		slog.String("user_id", opened.UserID),
		slog.String("asset", opened.AssetID),
		slog.String("side", string(opened.Side)),
		slog.String("stake", opened.Stake.String()),
	)

	s.recordEvent(ctx, "trade_opened", opened, false)
	if s.notifier != nil {
		if err := s.notifier.TradeOpened(ctx, opened); err != nil {
			s.logger.WarnContext(ctx, "open notification failed", slog.String("error", err.Error()))
		}
	}
	return opened, nil
}

func (s *TradeService) validateOpen(req OpenRequest) error {
	if req.UserID == "" || req.AssetID == "" {
		return fmt.Errorf("trade_service: missing user or asset: %w", domain.ErrInvalidStakeOrPrice)
	}
	if !req.Side.Valid() {
		return fmt.Errorf("trade_service: unknown side %q: %w", req.Side, domain.ErrInvalidStakeOrPrice)
	}
	if req.Stake.LessThan(s.params.MinStake) {
		return fmt.Errorf("trade_service: stake %s below minimum %s: %w",
			req.Stake, s.params.MinStake, domain.ErrInvalidStakeOrPrice)
	}
	if !s.params.MaxStake.IsZero() && req.Stake.GreaterThan(s.params.MaxStake) {
		return fmt.Errorf("trade_service: stake %s above maximum %s: %w",
			req.Stake, s.params.MaxStake, domain.ErrInvalidStakeOrPrice)
	}
	if req.PayoutRate.IsNegative() {
		return fmt.Errorf("trade_service: negative payout rate: %w", domain.ErrInvalidStakeOrPrice)
	}
	for _, tf := range s.params.TimeFrames {
		if req.TimeFrame == tf {
			return nil
		}
	}
	return fmt.Errorf("trade_service: time frame %s not offered: %w",
		req.TimeFrame, domain.ErrInvalidStakeOrPrice)
}

// referencePrice reads the cached feed price and rejects it when stale.
func (s *TradeService) referencePrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	price, at, err := s.prices.GetPrice(ctx, assetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("trade_service: no price for %s: %w",
				assetID, domain.ErrInvalidStakeOrPrice)
		}
		return decimal.Zero, fmt.Errorf("trade_service: price lookup %s: %w", assetID, err)
	}
	if age := s.now().Sub(at); age > s.params.MaxPriceAge {
		return decimal.Zero, fmt.Errorf("trade_service: price for %s is %s old: %w",
			assetID, age.Truncate(time.Second), domain.ErrInvalidStakeOrPrice)
	}
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("trade_service: non-positive price for %s: %w",
			assetID, domain.ErrInvalidStakeOrPrice)
	}
	return decimal.NewFromFloat(price), nil
}

// SettleByExpiry settles an expired trade with the outcome dictated by the
// owner's configured mode. Re-invocation on a completed trade returns the
// stored result without crediting again; settling before expiry returns
// ErrTradeNotExpired.
func (s *TradeService) SettleByExpiry(ctx context.Context, tradeID string) (domain.Trade, error) {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, err
	}
	if !trade.Settleable() {
		if trade.Status == domain.TradeStatusCompleted {
			return trade, nil
		}
		return domain.Trade{}, domain.ErrAlreadySettled
	}
	if !trade.Expired(s.now()) {
		return domain.Trade{}, domain.ErrTradeNotExpired
	}

	profile, err := s.users.GetProfile(ctx, trade.UserID)
	if err != nil {
		return domain.Trade{}, err
	}

	settled, err := s.settle(ctx, trade, s.policy.Decide(profile, nil))
	if err != nil {
		// Lost the compare-and-swap to a concurrent settler; the stored
		// result stands.
		if errors.Is(err, domain.ErrAlreadySettled) {
			if current, getErr := s.trades.GetByID(ctx, tradeID); getErr == nil && current.Status == domain.TradeStatusCompleted {
				return current, nil
			}
		}
		return domain.Trade{}, err
	}
	return settled, nil
}

// SettleByAdmin settles a trade immediately with the given outcome,
// bypassing both the expiry check and the owner's configured mode.
func (s *TradeService) SettleByAdmin(ctx context.Context, tradeID string, outcome domain.Outcome) (domain.Trade, error) {
	if !outcome.Valid() {
		return domain.Trade{}, fmt.Errorf("trade_service: unknown outcome %q: %w",
			outcome, domain.ErrInvalidStakeOrPrice)
	}
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, err
	}
	if !trade.Settleable() {
		return domain.Trade{}, domain.ErrAlreadySettled
	}
	return s.settle(ctx, trade, outcome)
}

// settle synthesizes the closing price, computes the payout and runs the
// atomic transition. The store's compare-and-swap makes concurrent duplicate
// settlements collapse into one credit.
func (s *TradeService) settle(ctx context.Context, trade domain.Trade, outcome domain.Outcome) (domain.Trade, error) {
	closing, err := s.synth.ClosingPrice(trade.ReferencePrice, trade.Side, outcome)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: synthesize close for %s: %w", trade.ID, err)
	}
	payout := pricing.Payout(trade.Stake, trade.PayoutRate, outcome)

	settled, err := s.trades.Settle(ctx, trade.ID, outcome, closing, payout)
	if err != nil {
		return domain.Trade{}, err
	}

	s.logger.InfoContext(ctx, "trade settled",
		slog.String("trade_id", settled.ID),
		slog.String("user_id", settled.UserID),
		slog.String("outcome", string(outcome)),
		slog.String("payout", payout.String()),
	)

	s.recordEvent(ctx, "trade_settled", settled, true)
	if s.notifier != nil {
		if err := s.notifier.TradeSettled(ctx, settled); err != nil {
			s.logger.WarnContext(ctx, "settlement notification failed", slog.String("error", err.Error()))
		}
	}
	return settled, nil
}

// Reject cancels an active trade and refunds the stake.
func (s *TradeService) Reject(ctx context.Context, tradeID string) (domain.Trade, error) {
	rejected, err := s.trades.Reject(ctx, tradeID)
	if err != nil {
		return domain.Trade{}, err
	}

	s.logger.InfoContext(ctx, "trade rejected",
		slog.String("trade_id", rejected.ID),
		slog.String("user_id", rejected.UserID),
		slog.String("refund", rejected.Stake.String()),
	)

	s.recordEvent(ctx, "trade_rejected", rejected, false)
	if s.notifier != nil {
		if err := s.notifier.TradeRejected(ctx, rejected); err != nil {
			s.logger.WarnContext(ctx, "rejection notification failed", slog.String("error", err.Error()))
		}
	}
	return rejected, nil
}

// SettleExpired settles up to limit expired active trades and returns how
// many settled. Trades that race with another settler are skipped, not
// failed.
func (s *TradeService) SettleExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.trades.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("trade_service: list expired: %w", err)
	}

	settled := 0
	for _, trade := range expired {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}

		profile, err := s.users.GetProfile(ctx, trade.UserID)
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep profile lookup failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()))
			continue
		}
		if _, err := s.settle(ctx, trade, s.policy.Decide(profile, nil)); err != nil {
			if errors.Is(err, domain.ErrAlreadySettled) {
				continue
			}
			s.logger.ErrorContext(ctx, "sweep settlement failed",
				slog.String("trade_id", trade.ID),
				slog.String("error", err.Error()))
			continue
		}
		settled++
	}
	return settled, nil
}

// settleExpiredForUser settles the user's active trade when it has expired.
// No active trade, or an unexpired one, is not an error here; the open path
// reports the latter through the store's uniqueness check.
func (s *TradeService) settleExpiredForUser(ctx context.Context, userID string) error {
	active, err := s.trades.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("trade_service: active lookup for %s: %w", userID, err)
	}
	if !active.Expired(s.now()) {
		return nil
	}

	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.settle(ctx, active, s.policy.Decide(profile, nil)); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			return nil
		}
		return err
	}
	return nil
}

// GetTrade returns one trade.
func (s *TradeService) GetTrade(ctx context.Context, id string) (domain.Trade, error) {
	return s.trades.GetByID(ctx, id)
}

// ListByUser returns a user's trades, newest first.
func (s *TradeService) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.trades.ListByUser(ctx, userID, opts)
}

// ListByStatus returns trades in a lifecycle state, newest first.
func (s *TradeService) ListByStatus(ctx context.Context, status domain.TradeStatus, opts domain.ListOpts) ([]domain.Trade, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("trade_service: unknown status %q: %w", status, domain.ErrInvalidStakeOrPrice)
	}
	return s.trades.ListByStatus(ctx, status, opts)
}

func validStatus(st domain.TradeStatus) bool {
	switch st {
	case domain.TradeStatusPendingApproval, domain.TradeStatusActive,
		domain.TradeStatusCompleted, domain.TradeStatusCancelled:
		return true
	}
	return false
}

// tradeEvent is the JSON shape published on TradeChannel and the settlement
// stream.
type tradeEvent struct {
	Event string       `json:"event"`
	Trade domain.Trade `json:"trade"`
}

// recordEvent writes the audit entry and fans the event out on the bus. All
// of it is best-effort; the lifecycle mutation has already committed.
func (s *TradeService) recordEvent(ctx context.Context, event string, trade domain.Trade, durable bool) {
	if s.audit != nil {
		detail := map[string]any{
			"trade_id": trade.ID,
			"user_id":  trade.UserID,
			"asset_id": trade.AssetID,
			"status":   string(trade.Status),
		}
		if trade.Outcome != "" {
			detail["outcome"] = string(trade.Outcome)
		}
		if trade.Payout != nil {
			detail["payout"] = trade.Payout.String()
		}
		if err := s.audit.Log(ctx, event, detail); err != nil {
			s.logger.WarnContext(ctx, "audit write failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}

	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(tradeEvent{Event: event, Trade: trade})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, TradeChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
	if durable {
		if err := s.bus.StreamAppend(ctx, SettlementStream, payload); err != nil {
			s.logger.WarnContext(ctx, "stream append failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}
}
