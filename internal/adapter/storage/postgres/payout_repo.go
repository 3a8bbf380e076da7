package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, user_id, amount, method, status, priority,
	requested_at, approved_at, processed_at, completed_at,
	attempt_count, max_attempts, last_error, error_retryable, next_retry_at,
	external_txn_id, fee, net_amount, notes, rejection_reason`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// Create inserts a new payout request within a transaction.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `INSERT INTO payout_requests (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.UserID, p.Amount, p.Method, p.Status, p.Priority,
		p.RequestedAt, p.ApprovedAt, p.ProcessedAt, p.CompletedAt,
		p.AttemptCount, p.MaxAttempts, p.LastError, p.ErrorRetryable, p.NextRetryAt,
		p.ExternalTxnID, p.Fee, p.NetAmount, p.Notes, p.RejectionReason,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID fetches a payout request by its UUID.
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`

	p := &domain.PayoutRequest{}
	err := scanPayout(r.pool.QueryRow(ctx, query, id), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout by id: %w", err)
	}
	return p, nil
}

// UpdateCAS persists every mutable field, guarded by the expected
// status. Returns false with no error when the guard misses: the row
// was concurrently transitioned and nothing was written.
func (r *PayoutRepo) UpdateCAS(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest, expected domain.PayoutStatus) (bool, error) {
	query := `UPDATE payout_requests SET
			status = $1, priority = $2,
			approved_at = $3, processed_at = $4, completed_at = $5,
			attempt_count = $6, last_error = $7, error_retryable = $8, next_retry_at = $9,
			external_txn_id = $10, fee = $11, net_amount = $12, notes = $13, rejection_reason = $14
		WHERE id = $15 AND status = $16`

	tag, err := tx.Exec(ctx, query,
		p.Status, p.Priority,
		p.ApprovedAt, p.ProcessedAt, p.CompletedAt,
		p.AttemptCount, p.LastError, p.ErrorRetryable, p.NextRetryAt,
		p.ExternalTxnID, p.Fee, p.NetAmount, p.Notes, p.RejectionReason,
		p.ID, expected,
	)
	if err != nil {
		return false, fmt.Errorf("update payout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns a filtered page of payout requests plus the total
// matching count.
func (r *PayoutRepo) List(ctx context.Context, params ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
	conds := make([]string, 0, 5)
	args := make([]any, 0, 7)

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if params.UserID != nil {
		add("user_id = $%d", *params.UserID)
	}
	if params.Status != nil {
		add("status = $%d", *params.Status)
	}
	if params.Method != nil {
		add("method = $%d", *params.Method)
	}
	if params.From != nil {
		add("requested_at >= to_timestamp($%d)", *params.From)
	}
	if params.To != nil {
		add("requested_at <= to_timestamp($%d)", *params.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM payout_requests` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payouts: %w", err)
	}

	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)
	query := fmt.Sprintf(`SELECT `+payoutColumns+` FROM payout_requests%s
		ORDER BY requested_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	items, err := collectPayouts(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListRetryEligible returns failed, retryable requests whose scheduled
// retry time has passed, oldest schedule first.
func (r *PayoutRepo) ListRetryEligible(ctx context.Context, now time.Time, limit int) ([]domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests
		WHERE status = $1
		  AND error_retryable
		  AND attempt_count < max_attempts
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= $2
		ORDER BY next_retry_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.PayoutStatusFailed, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list retry-eligible payouts: %w", err)
	}
	defer rows.Close()

	return collectPayouts(rows)
}

// GetStats aggregates payout counters, optionally bounded to requests
// created at or after periodStart (unix seconds).
func (r *PayoutRepo) GetStats(ctx context.Context, periodStart *int64) (*ports.PayoutStats, error) {
	query := `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'FAILED' AND (NOT error_retryable OR attempt_count >= max_attempts)),
			COUNT(*) FILTER (WHERE status = 'REJECTED'),
			COUNT(*) FILTER (WHERE status IN ('PENDING', 'APPROVED', 'PROCESSING')
				OR (status = 'FAILED' AND error_retryable AND attempt_count < max_attempts)),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(net_amount) FILTER (WHERE status = 'COMPLETED'), 0),
			COALESCE(SUM(fee) FILTER (WHERE status = 'COMPLETED'), 0)
		FROM payout_requests`

	args := []any{}
	if periodStart != nil {
		query += ` WHERE requested_at >= to_timestamp($1)`
		args = append(args, *periodStart)
	}

	s := &ports.PayoutStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.TotalRequests, &s.Completed, &s.Failed, &s.Rejected, &s.InFlight,
		&s.TotalRequested, &s.TotalPaidOut, &s.TotalFees,
	)
	if err != nil {
		return nil, fmt.Errorf("get payout stats: %w", err)
	}
	return s, nil
}

func scanPayout(row pgx.Row, p *domain.PayoutRequest) error {
	return row.Scan(
		&p.ID, &p.UserID, &p.Amount, &p.Method, &p.Status, &p.Priority,
		&p.RequestedAt, &p.ApprovedAt, &p.ProcessedAt, &p.CompletedAt,
		&p.AttemptCount, &p.MaxAttempts, &p.LastError, &p.ErrorRetryable, &p.NextRetryAt,
		&p.ExternalTxnID, &p.Fee, &p.NetAmount, &p.Notes, &p.RejectionReason,
	)
}

func collectPayouts(rows pgx.Rows) ([]domain.PayoutRequest, error) {
	var items []domain.PayoutRequest
	for rows.Next() {
		var p domain.PayoutRequest
		if err := scanPayout(rows, &p); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payouts: %w", err)
	}
	return items, nil
}
