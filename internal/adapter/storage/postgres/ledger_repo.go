package postgres

import (
	"context"
	"fmt"

	"payout-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, user_id, kind, amount, balance_before, balance_after, payout_id, created_at`

// LedgerRepo implements ports.LedgerRepository. The ledger is append
// only; there are no update or delete operations.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts a ledger entry within the transaction that mutated the
// balance it records.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Kind, entry.Amount,
		entry.BalanceBefore, entry.BalanceAfter, entry.PayoutID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns a user's most recent ledger entries.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows)
}

// ListByPayout returns every entry linked to a payout request, oldest
// first, tracing the money through its lifecycle.
func (r *LedgerRepo) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE payout_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, payoutID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries by payout: %w", err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows)
}

func collectLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Kind, &e.Amount,
			&e.BalanceBefore, &e.BalanceAfter, &e.PayoutID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
