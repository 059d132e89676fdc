package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auricex/auricex/internal/domain"
)

// In-memory fakes implementing the store and cache interfaces. The fake
// trade store mirrors the real store's composite semantics: Open debits,
// Settle and Reject are compare-and-swap transitions that credit.

type fakeUserStore struct {
	mu       sync.Mutex
	profiles map[string]domain.UserProfile
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{profiles: make(map[string]domain.UserProfile)}
}

func (f *fakeUserStore) put(p domain.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = p
}

func (f *fakeUserStore) GetProfile(_ context.Context, userID string) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeUserStore) Debit(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debitLocked(userID, amount)
}

func (f *fakeUserStore) debitLocked(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	if p.Balance.LessThan(amount) {
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	p.Balance = p.Balance.Sub(amount)
	f.profiles[userID] = p
	return p.Balance, nil
}

func (f *fakeUserStore) Credit(_ context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creditLocked(userID, amount)
}

func (f *fakeUserStore) creditLocked(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return decimal.Zero, domain.ErrNotFound
	}
	p.Balance = p.Balance.Add(amount)
	f.profiles[userID] = p
	return p.Balance, nil
}

func (f *fakeUserStore) SetOutcomeMode(_ context.Context, userID string, mode domain.OutcomeMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return domain.ErrNotFound
	}
	p.OutcomeMode = mode
	f.profiles[userID] = p
	return nil
}

func (f *fakeUserStore) SetKycApproved(_ context.Context, userID string, approved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return domain.ErrNotFound
	}
	p.KycApproved = approved
	f.profiles[userID] = p
	return nil
}

func (f *fakeUserStore) balance(userID string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[userID].Balance
}

type fakeTradeStore struct {
	mu     sync.Mutex
	trades map[string]domain.Trade
	users  *fakeUserStore
}

func newFakeTradeStore(users *fakeUserStore) *fakeTradeStore {
	return &fakeTradeStore{trades: make(map[string]domain.Trade), users: users}
}

func (f *fakeTradeStore) Open(_ context.Context, t domain.Trade) (domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.trades {
		if existing.UserID == t.UserID && existing.Status == domain.TradeStatusActive {
			return domain.Trade{}, domain.ErrActiveTradeExists
		}
	}

	f.users.mu.Lock()
	_, err := f.users.debitLocked(t.UserID, t.Stake)
	f.users.mu.Unlock()
	if err != nil {
		return domain.Trade{}, err
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	f.trades[t.ID] = t
	return t, nil
}

func (f *fakeTradeStore) Settle(_ context.Context, id string, outcome domain.Outcome, closingPrice, payout decimal.Decimal) (domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	if t.Status != domain.TradeStatusActive {
		return domain.Trade{}, domain.ErrAlreadySettled
	}

	t.Status = domain.TradeStatusCompleted
	t.Outcome = outcome
	t.ClosingPrice = &closingPrice
	t.Payout = &payout
	t.UpdatedAt = time.Now()
	f.trades[id] = t

	f.users.mu.Lock()
	_, err := f.users.creditLocked(t.UserID, payout)
	f.users.mu.Unlock()
	if err != nil {
		return domain.Trade{}, err
	}
	return t, nil
}

func (f *fakeTradeStore) Reject(_ context.Context, id string) (domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	if t.Status != domain.TradeStatusActive {
		return domain.Trade{}, domain.ErrAlreadySettled
	}

	t.Status = domain.TradeStatusCancelled
	t.Approval = domain.ApprovalRejected
	t.UpdatedAt = time.Now()
	f.trades[id] = t

	f.users.mu.Lock()
	_, err := f.users.creditLocked(t.UserID, t.Stake)
	f.users.mu.Unlock()
	if err != nil {
		return domain.Trade{}, err
	}
	return t, nil
}

func (f *fakeTradeStore) GetByID(_ context.Context, id string) (domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[id]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTradeStore) GetActive(_ context.Context, userID string) (domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.trades {
		if t.UserID == userID && t.Status == domain.TradeStatusActive {
			return t, nil
		}
	}
	return domain.Trade{}, domain.ErrNotFound
}

func (f *fakeTradeStore) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Trade
	for _, t := range f.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTradeStore) ListByStatus(_ context.Context, status domain.TradeStatus, _ domain.ListOpts) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Trade
	for _, t := range f.trades {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTradeStore) ListExpired(_ context.Context, asOf time.Time, limit int) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Trade
	for _, t := range f.trades {
		if t.Status == domain.TradeStatusActive && !asOf.Before(t.ExpiresAt) {
			out = append(out, t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTradeStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Trade
	for _, t := range f.trades {
		if (t.Status == domain.TradeStatusCompleted || t.Status == domain.TradeStatusCancelled) && t.UpdatedAt.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTradeStore) DeleteSettledBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, t := range f.trades {
		if (t.Status == domain.TradeStatusCompleted || t.Status == domain.TradeStatusCancelled) && t.UpdatedAt.Before(before) {
			delete(f.trades, id)
			n++
		}
	}
	return n, nil
}

type fakeAuditStore struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakePriceCache struct {
	price float64
	at    time.Time
}

func (f *fakePriceCache) SetPrice(_ context.Context, _ string, price float64, ts time.Time) error {
	f.price = price
	f.at = ts
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, _ string) (float64, time.Time, error) {
	if f.price == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return f.price, f.at, nil
}

func (f *fakePriceCache) GetPrices(_ context.Context, _ []string) (map[string]float64, error) {
	return nil, nil
}

type fakeLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]bool)}
}

func (f *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

type fakeSignalBus struct {
	mu        sync.Mutex
	published []string
	appended  []string
}

func (f *fakeSignalBus) Publish(_ context.Context, channel string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeSignalBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (f *fakeSignalBus) StreamAppend(_ context.Context, stream string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, stream)
	return nil
}

func (f *fakeSignalBus) StreamRead(_ context.Context, _ string, _ string, _ int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeNotifier struct {
	opened   int
	settled  int
	rejected int
	err      error
}

func (f *fakeNotifier) TradeOpened(_ context.Context, _ domain.Trade) error {
	f.opened++
	return f.err
}

func (f *fakeNotifier) TradeSettled(_ context.Context, _ domain.Trade) error {
	f.settled++
	return f.err
}

func (f *fakeNotifier) TradeRejected(_ context.Context, _ domain.Trade) error {
	f.rejected++
	return f.err
}

type testEnv struct {
	svc      *TradeService
	trades   *fakeTradeStore
	users    *fakeUserStore
	audit    *fakeAuditStore
	prices   *fakePriceCache
	locks    *fakeLockManager
	bus      *fakeSignalBus
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserStore()
	env := &testEnv{
		trades:   newFakeTradeStore(users),
		users:    users,
		audit:    &fakeAuditStore{},
		prices:   &fakePriceCache{price: 50000, at: time.Now()},
		locks:    newFakeLockManager(),
		bus:      &fakeSignalBus{},
		notifier: &fakeNotifier{},
	}

	params := Params{
		MinStake:          decimal.NewFromInt(1),
		MaxStake:          decimal.NewFromInt(10000),
		DefaultPayoutRate: decimal.NewFromInt(80),
		MaxPriceAge:       5 * time.Minute,
		TimeFrames:        []time.Duration{time.Minute, 5 * time.Minute},
		OpenLockTTL:       10 * time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = NewTradeService(env.trades, env.users, env.audit, env.prices,
		env.locks, env.bus, env.notifier, params, logger)
	return env
}

func (e *testEnv) addUser(id string, balance int64, kyc bool, mode domain.OutcomeMode) {
	e.users.put(domain.UserProfile{
		ID:          id,
		Balance:     decimal.NewFromInt(balance),
		KycApproved: kyc,
		OutcomeMode: mode,
	})
}

func openReq(userID string) OpenRequest {
	return OpenRequest{
		UserID:     userID,
		AssetClass: "crypto",
		AssetID:    "BTCUSDT",
		Symbol:     "BTC/USD",
		Side:       domain.SideLong,
		Stake:      decimal.NewFromInt(100),
		TimeFrame:  time.Minute,
	}
}

func TestOpenDebitsStakeAndActivates(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)

	trade, err := env.svc.Open(context.Background(), openReq("u1"))
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStatusActive, trade.Status)
	assert.Equal(t, domain.ApprovalApproved, trade.Approval)
	assert.Equal(t, "80", trade.PayoutRate.String())
	assert.Equal(t, "50000", trade.ReferencePrice.String())
	assert.Equal(t, "900", env.users.balance("u1").String())
	assert.Equal(t, 1, env.notifier.opened)
	assert.Contains(t, env.audit.events, "trade_opened")
	assert.Contains(t, env.bus.published, TradeChannel)
}

func TestOpenRequiresKyc(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, false, domain.OutcomeModeLoss)

	_, err := env.svc.Open(context.Background(), openReq("u1"))
	require.ErrorIs(t, err, domain.ErrKycRequired)
	assert.Equal(t, "1000", env.users.balance("u1").String())
}

func TestOpenInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 50, true, domain.OutcomeModeLoss)

	_, err := env.svc.Open(context.Background(), openReq("u1"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "50", env.users.balance("u1").String())
}

func TestOpenValidation(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	ctx := context.Background()

	bad := openReq("u1")
	bad.Side = "sideways"
	_, err := env.svc.Open(ctx, bad)
	require.ErrorIs(t, err, domain.ErrInvalidStakeOrPrice)

	bad = openReq("u1")
	bad.Stake = decimal.NewFromFloat(0.5)
	_, err = env.svc.Open(ctx, bad)
	require.ErrorIs(t, err, domain.ErrInvalidStakeOrPrice)

	bad = openReq("u1")
	bad.Stake = decimal.NewFromInt(20000)
	_, err = env.svc.Open(ctx, bad)
	require.ErrorIs(t, err, domain.ErrInvalidStakeOrPrice)

	bad = openReq("u1")
	bad.TimeFrame = 7 * time.Minute
	_, err = env.svc.Open(ctx, bad)
	require.ErrorIs(t, err, domain.ErrInvalidStakeOrPrice)
}

func TestOpenRejectsStalePrice(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	env.prices.at = time.Now().Add(-time.Hour)

	_, err := env.svc.Open(context.Background(), openReq("u1"))
	require.ErrorIs(t, err, domain.ErrInvalidStakeOrPrice)
}

func TestOpenSecondActiveTradeRejected(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	ctx := context.Background()

	_, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	_, err = env.svc.Open(ctx, openReq("u1"))
	require.ErrorIs(t, err, domain.ErrActiveTradeExists)
	assert.Equal(t, "900", env.users.balance("u1").String())
}

func TestOpenLockContention(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)

	_, err := env.locks.Acquire(context.Background(), "open:u1", time.Minute)
	require.NoError(t, err)

	_, err = env.svc.Open(context.Background(), openReq("u1"))
	require.ErrorIs(t, err, domain.ErrActiveTradeExists)
}

func TestOpenSettlesExpiredLeftover(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeWin)
	ctx := context.Background()

	first, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	// Move the clock past expiry. The next open settles the leftover with
	// the user's win mode (payout 180) before opening the new trade.
	env.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	second, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	settled, err := env.trades.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, settled.Status)
	assert.Equal(t, domain.OutcomeWin, settled.Outcome)

	// 1000 - 100 + 180 - 100
	assert.Equal(t, "980", env.users.balance("u1").String())
}

func TestSettleByExpiryUsesOutcomeMode(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeWin)
	ctx := context.Background()

	trade, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	env.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	settled, err := env.svc.SettleByExpiry(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeWin, settled.Outcome)
	require.NotNil(t, settled.Payout)
	assert.Equal(t, "180", settled.Payout.String())

	// Long win closes above the reference.
	require.NotNil(t, settled.ClosingPrice)
	assert.True(t, settled.ClosingPrice.GreaterThan(settled.ReferencePrice))

	assert.Equal(t, "1080", env.users.balance("u1").String())
	assert.Equal(t, 1, env.notifier.settled)
	assert.Contains(t, env.bus.appended, SettlementStream)
}

func TestSettleByExpiryBeforeExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	ctx := context.Background()

	trade, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	_, err = env.svc.SettleByExpiry(ctx, trade.ID)
	require.ErrorIs(t, err, domain.ErrTradeNotExpired)
	assert.Equal(t, "900", env.users.balance("u1").String())
}

func TestSettleIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	ctx := context.Background()

	trade, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	env.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	first, err := env.svc.SettleByExpiry(ctx, trade.ID)
	require.NoError(t, err)

	// Loss mode: 1000 - 100 + 20. A second settlement must not credit again.
	assert.Equal(t, "920", env.users.balance("u1").String())

	// Re-invocation returns the stored result, not an error, and nothing
	// settles a second time.
	again, err := env.svc.SettleByExpiry(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, again.Status)
	assert.Equal(t, first.Outcome, again.Outcome)
	require.NotNil(t, again.Payout)
	assert.Equal(t, "20", again.Payout.String())
	assert.Equal(t, "920", env.users.balance("u1").String())
	assert.Equal(t, 1, env.notifier.settled)
}

func TestSettleConcurrentReinvocationCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeWin)
	ctx := context.Background()

	trade, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	env.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	// An expiry sweep racing admin settlements: only the compare-and-swap
	// winner credits. Expiry settlers observe the stored result; admin
	// settlers that lose get the settled conflict.
	const settlers = 8
	results := make([]error, settlers)
	var wg sync.WaitGroup
	for i := 0; i < settlers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, results[i] = env.svc.SettleByExpiry(ctx, trade.ID)
			} else {
				_, results[i] = env.svc.SettleByAdmin(ctx, trade.ID, domain.OutcomeWin)
			}
		}(i)
	}
	wg.Wait()

	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrAlreadySettled)
		}
	}

	// Win payout credited exactly once: 1000 - 100 + 180.
	assert.Equal(t, "1080", env.users.balance("u1").String())

	settledEvents := 0
	env.audit.mu.Lock()
	for _, ev := range env.audit.events {
		if ev == "trade_settled" {
			settledEvents++
		}
	}
	env.audit.mu.Unlock()
	assert.Equal(t, 1, settledEvents)
	assert.Equal(t, 1, env.notifier.settled)

	settled, err := env.trades.GetByID(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, settled.Status)
	assert.Equal(t, domain.OutcomeWin, settled.Outcome)
}

func TestSettleByAdminOverridesMode(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	ctx := context.Background()

	trade, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	// No expiry wait for admin settlement, and the loss mode is bypassed.
	settled, err := env.svc.SettleByAdmin(ctx, trade.ID, domain.OutcomeWin)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeWin, settled.Outcome)
	assert.Equal(t, "1080", env.users.balance("u1").String())
}

func TestSettleByAdminUnknownOutcome(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)

	_, err := env.svc.SettleByAdmin(context.Background(), "whatever", "draw")
	require.ErrorIs(t, err, domain.ErrInvalidStakeOrPrice)
}

func TestRejectRefundsStake(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	ctx := context.Background()

	trade, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)
	assert.Equal(t, "900", env.users.balance("u1").String())

	rejected, err := env.svc.Reject(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCancelled, rejected.Status)
	assert.Equal(t, domain.ApprovalRejected, rejected.Approval)
	assert.Equal(t, "1000", env.users.balance("u1").String())
	assert.Equal(t, 1, env.notifier.rejected)

	_, err = env.svc.Reject(ctx, trade.ID)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
}

func TestSettleExpiredSweep(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	env.addUser("u2", 1000, true, domain.OutcomeModeWin)
	env.addUser("u3", 1000, true, domain.OutcomeModeLoss)
	ctx := context.Background()

	_, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)
	_, err = env.svc.Open(ctx, openReq("u2"))
	require.NoError(t, err)

	// u3 opens on a longer time frame and stays active through the sweep.
	longReq := openReq("u3")
	longReq.TimeFrame = 5 * time.Minute
	u3Trade, err := env.svc.Open(ctx, longReq)
	require.NoError(t, err)

	env.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	n, err := env.svc.SettleExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "920", env.users.balance("u1").String())
	assert.Equal(t, "1080", env.users.balance("u2").String())

	still, err := env.trades.GetByID(ctx, u3Trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusActive, still.Status)
}

func TestNotifierFailureDoesNotFailSettlement(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", 1000, true, domain.OutcomeModeLoss)
	env.notifier.err = assert.AnError
	ctx := context.Background()

	trade, err := env.svc.Open(ctx, openReq("u1"))
	require.NoError(t, err)

	env.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	settled, err := env.svc.SettleByExpiry(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCompleted, settled.Status)
}
