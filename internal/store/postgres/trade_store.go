package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Open, Settle and
// Reject run the ledger mutation and the trade state transition inside a
// single transaction so no partial settlement can be observed.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, user_id, asset_class, asset_id, symbol, side,
	stake, payout_rate, reference_price, closing_price, payout,
	time_frame_seconds, expires_at, status, approval, outcome,
	created_at, updated_at`

// uniqueViolation is the PostgreSQL error code raised when the partial
// unique index trades_one_active_per_user rejects a second active trade.
const uniqueViolation = "23505"

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var (
		t           domain.Trade
		side        string
		status      string
		approval    string
		outcome     *string
		tfSeconds   int64
	)

	err := row.Scan(
		&t.ID, &t.UserID, &t.AssetClass, &t.AssetID, &t.Symbol, &side,
		&t.Stake, &t.PayoutRate, &t.ReferencePrice, &t.ClosingPrice, &t.Payout,
		&tfSeconds, &t.ExpiresAt, &status, &approval, &outcome,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}

	t.Side = domain.Side(side)
	t.Status = domain.TradeStatus(status)
	t.Approval = domain.ApprovalStatus(approval)
	if outcome != nil {
		t.Outcome = domain.Outcome(*outcome)
	}
	t.TimeFrame = time.Duration(tfSeconds) * time.Second
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Open debits the stake and inserts the trade in one transaction. The
// conditional balance update never lets the balance go negative, and the
// trades_one_active_per_user index rejects a concurrent second open even if
// the application-level lock was bypassed.
func (s *TradeStore) Open(ctx context.Context, t domain.Trade) (domain.Trade, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: open trade begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2`,
		t.UserID, t.Stake,
	)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: open trade debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", t.UserID,
		).Scan(&exists); err != nil {
			return domain.Trade{}, fmt.Errorf("postgres: open trade user check: %w", err)
		}
		if !exists {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, domain.ErrInsufficientFunds
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO trades (
			id, user_id, asset_class, asset_id, symbol, side,
			stake, payout_rate, reference_price,
			time_frame_seconds, expires_at, status, approval,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12, $13,
			NOW(), NOW()
		) RETURNING `+tradeSelectCols,
		t.ID, t.UserID, t.AssetClass, t.AssetID, t.Symbol, string(t.Side),
		t.Stake, t.PayoutRate, t.ReferencePrice,
		int64(t.TimeFrame/time.Second), t.ExpiresAt,
		string(t.Status), string(t.Approval),
	)

	inserted, err := scanTrade(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Trade{}, domain.ErrActiveTradeExists
		}
		return domain.Trade{}, fmt.Errorf("postgres: open trade insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: open trade commit: %w", err)
	}
	return inserted, nil
}

// Settle performs the compare-and-swap transition active -> completed and
// credits the payout, atomically. Two concurrent settlement attempts result
// in exactly one credit: the loser of the CAS gets ErrAlreadySettled.
func (s *TradeStore) Settle(ctx context.Context, id string, outcome domain.Outcome, closingPrice, payout decimal.Decimal) (domain.Trade, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: settle begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE trades SET
			status        = 'completed',
			outcome       = $2,
			closing_price = $3,
			payout        = $4,
			updated_at    = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING `+tradeSelectCols,
		id, string(outcome), closingPrice, payout,
	)

	settled, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, s.conflictErr(ctx, id)
		}
		return domain.Trade{}, fmt.Errorf("postgres: settle trade %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1`,
		settled.UserID, payout,
	); err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: settle credit %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: settle commit %s: %w", id, err)
	}
	return settled, nil
}

// Reject performs the compare-and-swap transition active -> cancelled and
// refunds exactly the original stake.
func (s *TradeStore) Reject(ctx context.Context, id string) (domain.Trade, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: reject begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE trades SET
			status     = 'cancelled',
			approval   = 'rejected',
			updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING `+tradeSelectCols,
		id,
	)

	rejected, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, s.conflictErr(ctx, id)
		}
		return domain.Trade{}, fmt.Errorf("postgres: reject trade %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1`,
		rejected.UserID, rejected.Stake,
	); err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: reject refund %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Trade{}, fmt.Errorf("postgres: reject commit %s: %w", id, err)
	}
	return rejected, nil
}

// conflictErr distinguishes a missing trade from one that lost the CAS.
func (s *TradeStore) conflictErr(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM trades WHERE id = $1)", id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: trade conflict check %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadySettled
}

// GetByID retrieves a single trade by its ID.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)

	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// GetActive returns the user's single active trade, or domain.ErrNotFound.
func (s *TradeStore) GetActive(ctx context.Context, userID string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE user_id = $1 AND status = 'active'`, userID)

	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("postgres: get active trade for %s: %w", userID, err)
	}
	return t, nil
}

// ListByUser returns trades for a user with pagination and optional time
// filtering, newest first.
func (s *TradeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE user_id = $1`
	args := []any{userID}
	query, args = appendListOpts(query, args, opts, "created_at")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by user: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by user: %w", err)
	}
	return trades, nil
}

// ListByStatus returns trades in the given lifecycle state, newest first.
func (s *TradeStore) ListByStatus(ctx context.Context, status domain.TradeStatus, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE status = $1`
	args := []any{string(status)}
	query, args = appendListOpts(query, args, opts, "created_at")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by status: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by status: %w", err)
	}
	return trades, nil
}

// ListExpired returns up to limit active trades whose expiry is at or before
// asOf, oldest expiry first.
func (s *TradeStore) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE status = 'active' AND expires_at <= $1
		 ORDER BY expires_at ASC
		 LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan expired trades: %w", err)
	}
	return trades, nil
}

// ListSettledBefore returns all completed/cancelled trades updated strictly
// before the given time (for archiving).
func (s *TradeStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE status IN ('completed', 'cancelled') AND updated_at < $1
		 ORDER BY updated_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// DeleteSettledBefore deletes all completed/cancelled trades updated before
// the given time. Returns the number deleted.
func (s *TradeStore) DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trades
		 WHERE status IN ('completed', 'cancelled') AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete settled trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// appendListOpts appends time filters, ordering and pagination to a query.
func appendListOpts(query string, args []any, opts domain.ListOpts, timeCol string) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", timeCol, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", timeCol, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY %s DESC", timeCol)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
