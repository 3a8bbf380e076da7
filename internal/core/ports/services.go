package ports

import (
	"context"
	"encoding/json"
	"time"

	"payout-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// Ledger is the balance-accounting primitive. Reserve, Restore and
// ChargeFee run inside the caller's database transaction so the balance
// change and the payout transition commit together; Credit and the read
// projections manage their own transactions.
type Ledger interface {
	// Reserve debits available by amount and appends a RESERVE entry.
	// Fails with InsufficientFunds (no change) when available < amount.
	Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, payoutID uuid.UUID) error
	// Restore credits available by the payout's original amount and
	// appends a RESTORE entry. Called exactly once per request, only as
	// part of the transition that rejects or terminally fails it.
	Restore(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	// ChargeFee releases the reservation of a completed payout and
	// appends a FEE audit entry. Available is untouched: the funds left
	// it at reservation time.
	ChargeFee(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest, fee int64) error
	// Credit is the upstream accrual primitive: it increments available
	// and appends a CREDIT entry, creating the balance row if needed.
	Credit(ctx context.Context, userID uuid.UUID, amount int64) (*domain.UserBalance, error)
	Balance(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error)
	Entries(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}

// PayoutService owns the payout request state machine. Every transition
// is guarded by a compare-and-swap on (id, expected status), so stale or
// duplicate callers observe PreconditionFailed instead of mutating.
type PayoutService interface {
	Create(ctx context.Context, req CreatePayoutRequest) (*domain.PayoutRequest, error)
	Approve(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.PayoutRequest, error)
	// Process moves an approved request to processing and enqueues one
	// attempt on the task dispatcher.
	Process(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	// Retry re-dispatches a failed, retry-eligible request. Used by both
	// manual retries and the periodic sweep.
	Retry(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	// RunAttempt executes one processor attempt for a request currently
	// in processing. Safe under at-least-once redelivery: it no-ops when
	// the request is no longer in processing.
	RunAttempt(ctx context.Context, id uuid.UUID) error
	// RunBatch executes queued batch dispatch: items run sequentially
	// and one item's failure never aborts the rest.
	RunBatch(ctx context.Context, ids []uuid.UUID) error
	// SweepRetries re-dispatches every failed request the retry schedule
	// considers eligible, returning how many were queued.
	SweepRetries(ctx context.Context) (int, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	List(ctx context.Context, params PayoutListParams) ([]domain.PayoutRequest, int64, error)
	Stats(ctx context.Context, periodStart *int64) (*PayoutStats, error)
}

// CreatePayoutRequest holds validated input for payout creation.
type CreatePayoutRequest struct {
	UserID   uuid.UUID
	Amount   int64
	Method   domain.PayoutMethod
	Priority domain.PayoutPriority
	Notes    string
}

// BatchAction is one of the operations the batch coordinator fans out.
type BatchAction string

const (
	BatchActionApprove BatchAction = "approve"
	BatchActionProcess BatchAction = "process"
	BatchActionReject  BatchAction = "reject"
)

// BatchService applies one action across many payout requests with
// per-item isolation.
type BatchService interface {
	Run(ctx context.Context, ids []uuid.UUID, action BatchAction) (*BatchResult, error)
}

// BatchItemResult records the outcome for a single batch item.
type BatchItemResult struct {
	ID      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
	Reason  string    `json:"reason,omitempty"`
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []BatchItemResult `json:"items"`
}

// AttemptRequest is the input handed to a processor for one attempt.
type AttemptRequest struct {
	PayoutID uuid.UUID
	UserID   uuid.UUID
	Amount   int64 // In cents
	Method   domain.PayoutMethod
	Attempt  int
}

// AttemptOutcome is the result of one disbursement attempt. On success
// ExternalTxnID and Fee are set; on failure ErrorMessage and Retryable
// classify the error.
type AttemptOutcome struct {
	Success       bool
	ExternalTxnID string
	Fee           int64 // In cents
	ErrorMessage  string
	Retryable     bool
}

// Processor performs one disbursement attempt against an external rail.
// Implementations must return within a bounded time: an exceeded bound
// surfaces as a retryable failure, never a hang.
type Processor interface {
	Attempt(ctx context.Context, req AttemptRequest) (AttemptOutcome, error)
	Method() domain.PayoutMethod
}

// ProcessorRegistry resolves the processor registered for a method.
type ProcessorRegistry interface {
	Resolve(method domain.PayoutMethod) (Processor, error)
}

// Task kinds understood by the dispatch workers.
const (
	TaskKindProcess    = "payout.process"
	TaskKindBatch      = "payout.batch"
	TaskKindRetrySweep = "payout.retry_sweep"
)

// Task is the envelope carried by the task queue.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Deliveries int             `json:"deliveries"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ProcessTaskPayload is the payload for TaskKindProcess.
type ProcessTaskPayload struct {
	PayoutID uuid.UUID `json:"payout_id"`
	Attempt  int       `json:"attempt"`
}

// BatchTaskPayload is the payload for TaskKindBatch: one unit-of-work
// covering every item, not one task per item.
type BatchTaskPayload struct {
	PayoutIDs []uuid.UUID `json:"payout_ids"`
}

// TaskDispatcher is the asynchronous execution substrate. Delivery is
// at-least-once with no cross-task ordering guarantee, so every handler
// behind it must be idempotent against redelivery.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, kind string, payload any) (string, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations for admin sessions.
type TokenService interface {
	Generate(adminID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AdminID  uuid.UUID
	Username string
}

// AuthService defines operator authentication.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*domain.Admin, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}
