package ports

import (
	"context"
	"time"

	"payout-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// BalanceRepository defines persistence operations for user balances.
// Methods accepting pgx.Tx run inside transaction blocks; GetForUpdate
// takes the row lock that serializes all ledger mutations per user.
type BalanceRepository interface {
	Create(ctx context.Context, tx pgx.Tx, balance *domain.UserBalance) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.UserBalance, error)
	UpdateAmounts(ctx context.Context, tx pgx.Tx, userID uuid.UUID, available, reserved int64) error
}

// PayoutRepository defines persistence operations for payout requests.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	// UpdateCAS persists all mutable fields of payout, guarded by
	// `WHERE id = $id AND status = $expected`. It returns false (and no
	// error) when the guard missed, i.e. a concurrent transition won.
	UpdateCAS(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest, expected domain.PayoutStatus) (bool, error)
	List(ctx context.Context, params PayoutListParams) ([]domain.PayoutRequest, int64, error)
	// ListRetryEligible returns failed, retryable requests whose
	// next_retry_at has passed, for the periodic sweep.
	ListRetryEligible(ctx context.Context, now time.Time, limit int) ([]domain.PayoutRequest, error)
	GetStats(ctx context.Context, periodStart *int64) (*PayoutStats, error)
}

// PayoutListParams holds filter + pagination for listing payout requests.
type PayoutListParams struct {
	UserID   *uuid.UUID
	Status   *domain.PayoutStatus
	Method   *domain.PayoutMethod
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// PayoutStats holds aggregated payout statistics for reporting.
type PayoutStats struct {
	TotalRequests  int64
	Completed      int64
	Failed         int64
	Rejected       int64
	InFlight       int64 // pending + approved + processing + failed-retryable
	TotalRequested int64 // Sum of amounts over all requests
	TotalPaidOut   int64 // Sum of net amounts over completed requests
	TotalFees      int64 // Sum of fees over completed requests
}

// LedgerRepository defines persistence for the append-only ledger stream.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
	ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.LedgerEntry, error)
}

// AdminRepository defines persistence operations for operator accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error)
	GetByUsername(ctx context.Context, username string) (*domain.Admin, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
