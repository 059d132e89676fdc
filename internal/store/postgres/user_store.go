package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/auricex/auricex/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL. Debit and Credit
// are single conditional UPDATE statements so concurrent mutations serialize
// on the row without any application-level locking.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// GetProfile retrieves the balance context for a user.
func (s *UserStore) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var (
		p    domain.UserProfile
		mode string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, balance, kyc_approved, outcome_mode, created_at, updated_at
		FROM users WHERE id = $1`, userID,
	).Scan(&p.ID, &p.Balance, &p.KycApproved, &mode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserProfile{}, domain.ErrNotFound
		}
		return domain.UserProfile{}, fmt.Errorf("postgres: get profile %s: %w", userID, err)
	}
	p.OutcomeMode = domain.OutcomeMode(mode)
	return p, nil
}

// Debit decreases the balance by amount and returns the new balance. The
// WHERE clause keeps the balance from going negative; a zero-row result is
// disambiguated into ErrNotFound or ErrInsufficientFunds.
func (s *UserStore) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("postgres: debit amount %s is negative: %w", amount, domain.ErrInvalidStakeOrPrice)
	}

	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance`, userID, amount,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if checkErr := s.pool.QueryRow(ctx,
				"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", userID,
			).Scan(&exists); checkErr != nil {
				return decimal.Zero, fmt.Errorf("postgres: debit user check %s: %w", userID, checkErr)
			}
			if !exists {
				return decimal.Zero, domain.ErrNotFound
			}
			return decimal.Zero, domain.ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("postgres: debit %s: %w", userID, err)
	}
	return balance, nil
}

// Credit increases the balance by amount and returns the new balance.
func (s *UserStore) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("postgres: credit amount %s is negative: %w", amount, domain.ErrInvalidStakeOrPrice)
	}

	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance`, userID, amount,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("postgres: credit %s: %w", userID, err)
	}
	return balance, nil
}

// SetOutcomeMode updates the forced settlement mode for a user.
func (s *UserStore) SetOutcomeMode(ctx context.Context, userID string, mode domain.OutcomeMode) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET outcome_mode = $2, updated_at = NOW()
		WHERE id = $1`, userID, string(mode))
	if err != nil {
		return fmt.Errorf("postgres: set outcome mode %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetKycApproved updates the KYC gate for a user.
func (s *UserStore) SetKycApproved(ctx context.Context, userID string, approved bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET kyc_approved = $2, updated_at = NOW()
		WHERE id = $1`, userID, approved)
	if err != nil {
		return fmt.Errorf("postgres: set kyc %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.UserStore = (*UserStore)(nil)
