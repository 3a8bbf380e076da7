package postgres

import (
	"context"
	"errors"
	"fmt"

	"payout-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// Create inserts a new balance row within a transaction.
func (r *BalanceRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.UserBalance) error {
	query := `INSERT INTO user_balances (user_id, available, reserved, updated_at)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, b.UserID, b.Available, b.Reserved, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert balance: %w", err)
	}
	return nil
}

// GetByUserID fetches a user's balance (non-locking read).
func (r *BalanceRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error) {
	query := `SELECT user_id, available, reserved, updated_at
		FROM user_balances WHERE user_id = $1`

	b := &domain.UserBalance{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&b.UserID, &b.Available, &b.Reserved, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// GetForUpdate fetches a user's balance with a row lock. The lock
// serializes every concurrent balance mutation for the user. This MUST
// be called within a transaction.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.UserBalance, error) {
	query := `SELECT user_id, available, reserved, updated_at
		FROM user_balances WHERE user_id = $1 FOR UPDATE`

	b := &domain.UserBalance{}
	err := tx.QueryRow(ctx, query, userID).Scan(
		&b.UserID, &b.Available, &b.Reserved, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance for update: %w", err)
	}
	return b, nil
}

// UpdateAmounts writes both balance buckets within a transaction.
func (r *BalanceRepo) UpdateAmounts(ctx context.Context, tx pgx.Tx, userID uuid.UUID, available, reserved int64) error {
	query := `UPDATE user_balances SET available = $1, reserved = $2, updated_at = NOW()
		WHERE user_id = $3`

	tag, err := tx.Exec(ctx, query, available, reserved, userID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance not found: %s", userID)
	}
	return nil
}
