package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
	"payout-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// sweepBatchLimit bounds how many eligible requests one sweep re-queues.
const sweepBatchLimit = 100

// PayoutServiceImpl implements ports.PayoutService. Every state
// transition persists through a compare-and-swap on (id, expected
// status), so duplicate or stale callers lose the race cleanly instead
// of double-applying balance effects.
type PayoutServiceImpl struct {
	payoutRepo ports.PayoutRepository
	ledger     ports.Ledger
	processors ports.ProcessorRegistry
	dispatcher ports.TaskDispatcher
	transactor ports.DBTransactor
	methods    map[domain.PayoutMethod]domain.MethodConfig
	retry      RetryPolicy
	log        zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	payoutRepo ports.PayoutRepository,
	ledger ports.Ledger,
	processors ports.ProcessorRegistry,
	dispatcher ports.TaskDispatcher,
	transactor ports.DBTransactor,
	methods map[domain.PayoutMethod]domain.MethodConfig,
	retry RetryPolicy,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		payoutRepo: payoutRepo,
		ledger:     ledger,
		processors: processors,
		dispatcher: dispatcher,
		transactor: transactor,
		methods:    methods,
		retry:      retry,
		log:        log,
	}
}

// Create validates the request, reserves the funds and persists a new
// PENDING payout request. Reservation and request creation commit in one
// transaction: there is never a reservation without a request.
func (s *PayoutServiceImpl) Create(ctx context.Context, req ports.CreatePayoutRequest) (*domain.PayoutRequest, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	mc, ok := s.methods[req.Method]
	if !ok {
		return nil, apperror.ErrUnknownMethod(string(req.Method))
	}
	if req.Amount < mc.MinAmount {
		return nil, apperror.ErrBelowMethodMinimum(string(req.Method), mc.MinAmount)
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	now := time.Now().UTC()
	payout := &domain.PayoutRequest{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Method:      req.Method,
		Status:      domain.PayoutStatusPending,
		Priority:    priority,
		RequestedAt: now,
		MaxAttempts: s.retry.MaxAttempts,
		Notes:       req.Notes,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.ledger.Reserve(ctx, dbTx, req.UserID, req.Amount, payout.ID); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.Create(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("method", string(req.Method)).
		Int64("amount", req.Amount).
		Msg("payout request created")

	return payout, nil
}

// Approve moves a PENDING request to APPROVED.
func (s *PayoutServiceImpl) Approve(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	payout, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout.Status != domain.PayoutStatusPending {
		return nil, apperror.ErrPreconditionFailed(fmt.Sprintf("expected PENDING, request is %s", payout.Status))
	}

	now := time.Now().UTC()
	payout.Status = domain.PayoutStatusApproved
	payout.ApprovedAt = &now

	if err := s.persistCAS(ctx, payout, domain.PayoutStatusPending, nil); err != nil {
		return nil, err
	}

	s.log.Info().Str("payout_id", id.String()).Msg("payout approved")
	return payout, nil
}

// Reject moves a PENDING request to REJECTED and restores the
// reservation in the same transaction.
func (s *PayoutServiceImpl) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.PayoutRequest, error) {
	payout, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout.Status != domain.PayoutStatusPending {
		return nil, apperror.ErrPreconditionFailed(fmt.Sprintf("expected PENDING, request is %s", payout.Status))
	}

	now := time.Now().UTC()
	payout.Status = domain.PayoutStatusRejected
	payout.RejectionReason = &reason
	payout.CompletedAt = &now

	err = s.persistCAS(ctx, payout, domain.PayoutStatusPending, s.ledger.Restore)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("payout_id", id.String()).Str("reason", reason).Msg("payout rejected")
	return payout, nil
}

// Process moves an APPROVED request to PROCESSING and enqueues exactly
// one attempt. The CAS commits before the enqueue, so a concurrent
// duplicate call observes PreconditionFailed and enqueues nothing.
func (s *PayoutServiceImpl) Process(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	payout, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if payout.Status != domain.PayoutStatusApproved {
		return nil, apperror.ErrPreconditionFailed(fmt.Sprintf("expected APPROVED, request is %s", payout.Status))
	}
	return s.beginProcessing(ctx, payout, domain.PayoutStatusApproved)
}

// Retry re-dispatches a FAILED, retry-eligible request. Manual retries
// skip the backoff schedule; the sweep checks timing before calling.
func (s *PayoutServiceImpl) Retry(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	payout, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payout.IsRetryEligible() {
		return nil, apperror.ErrRetryNotEligible(retryIneligibilityReason(payout))
	}
	return s.beginProcessing(ctx, payout, domain.PayoutStatusFailed)
}

// beginProcessing performs the shared (APPROVED|FAILED) -> PROCESSING
// transition and dispatches one attempt task. An enqueue failure is
// recorded as a retryable attempt failure so the sweep picks the
// request up later.
func (s *PayoutServiceImpl) beginProcessing(ctx context.Context, payout *domain.PayoutRequest, expected domain.PayoutStatus) (*domain.PayoutRequest, error) {
	now := time.Now().UTC()
	payout.Status = domain.PayoutStatusProcessing
	payout.ProcessedAt = &now
	payout.AttemptCount++
	payout.NextRetryAt = nil

	if err := s.persistCAS(ctx, payout, expected, nil); err != nil {
		return nil, err
	}

	payload := ports.ProcessTaskPayload{PayoutID: payout.ID, Attempt: payout.AttemptCount}
	taskID, err := s.dispatcher.Enqueue(ctx, ports.TaskKindProcess, payload)
	if err != nil {
		s.log.Error().Err(err).Str("payout_id", payout.ID.String()).Msg("attempt dispatch failed")
		s.recordFailure(ctx, payout, "task dispatch unavailable", true)
		return nil, apperror.ErrDispatchUnavailable(err)
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("task_id", taskID).
		Int("attempt", payout.AttemptCount).
		Msg("payout attempt dispatched")

	return payout, nil
}

// RunAttempt executes one processor attempt for a request currently in
// PROCESSING. Called by dispatch workers; redeliveries and stale tasks
// observe a non-PROCESSING status and no-op.
func (s *PayoutServiceImpl) RunAttempt(ctx context.Context, id uuid.UUID) error {
	payout, err := s.payoutRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil {
		s.log.Warn().Str("payout_id", id.String()).Msg("attempt task for unknown payout, dropping")
		return nil
	}
	if payout.Status != domain.PayoutStatusProcessing {
		s.log.Debug().
			Str("payout_id", id.String()).
			Str("status", string(payout.Status)).
			Msg("attempt task for non-processing payout, dropping")
		return nil
	}

	proc, err := s.processors.Resolve(payout.Method)
	if err != nil {
		s.recordFailure(ctx, payout, fmt.Sprintf("no processor for method %s", payout.Method), false)
		return nil
	}

	attemptCtx, cancel := context.WithTimeout(ctx, AttemptTimeout(payout.Priority))
	defer cancel()

	outcome, err := proc.Attempt(attemptCtx, ports.AttemptRequest{
		PayoutID: payout.ID,
		UserID:   payout.UserID,
		Amount:   payout.Amount,
		Method:   payout.Method,
		Attempt:  payout.AttemptCount,
	})
	if err != nil {
		// Transport-level failure (timeout included) is retryable.
		s.recordFailure(ctx, payout, err.Error(), true)
		return nil
	}

	if outcome.Success {
		return s.recordSuccess(ctx, payout, outcome)
	}
	s.recordFailure(ctx, payout, outcome.ErrorMessage, outcome.Retryable)
	return nil
}

// recordSuccess finalizes PROCESSING -> COMPLETED: external reference,
// fee and net amount on the request, reservation settled and FEE entry
// appended, all in one transaction. A CAS miss means another finalizer
// won; the outcome is absorbed.
func (s *PayoutServiceImpl) recordSuccess(ctx context.Context, payout *domain.PayoutRequest, outcome ports.AttemptOutcome) error {
	now := time.Now().UTC()
	payout.Status = domain.PayoutStatusCompleted
	payout.CompletedAt = &now
	payout.ExternalTxnID = &outcome.ExternalTxnID
	payout.Fee = outcome.Fee
	payout.NetAmount = payout.Amount - outcome.Fee
	payout.LastError = nil
	payout.ErrorRetryable = false
	payout.NextRetryAt = nil

	err := s.persistCAS(ctx, payout, domain.PayoutStatusProcessing, func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
		return s.ledger.ChargeFee(ctx, tx, p, outcome.Fee)
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "PAY_001" {
			s.log.Warn().Str("payout_id", payout.ID.String()).Msg("completion lost finalize race, absorbing")
			return nil
		}
		return err
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("external_txn_id", outcome.ExternalTxnID).
		Int64("fee", outcome.Fee).
		Int64("net_amount", payout.NetAmount).
		Msg("payout completed")

	return nil
}

// recordFailure finalizes PROCESSING -> FAILED. When attempts remain
// and the error is retryable, a next retry time is scheduled; otherwise
// the failure is terminal and the reservation is restored in the same
// transaction. CAS misses are absorbed.
func (s *PayoutServiceImpl) recordFailure(ctx context.Context, payout *domain.PayoutRequest, message string, retryable bool) {
	now := time.Now().UTC()
	payout.Status = domain.PayoutStatusFailed
	payout.LastError = &message
	payout.ErrorRetryable = retryable

	var restore func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error
	if retryable && payout.AttemptCount < payout.MaxAttempts {
		next := s.retry.NextRetryAt(payout.AttemptCount, now)
		payout.NextRetryAt = &next
	} else {
		payout.NextRetryAt = nil
		payout.CompletedAt = &now
		restore = s.ledger.Restore
	}

	err := s.persistCAS(ctx, payout, domain.PayoutStatusProcessing, restore)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == "PAY_001" {
			s.log.Warn().Str("payout_id", payout.ID.String()).Msg("failure lost finalize race, absorbing")
			return
		}
		s.log.Error().Err(err).Str("payout_id", payout.ID.String()).Msg("recording attempt failure")
		return
	}

	evt := s.log.Warn().
		Str("payout_id", payout.ID.String()).
		Str("error", message).
		Bool("retryable", retryable).
		Int("attempt", payout.AttemptCount)
	if payout.NextRetryAt != nil {
		evt.Time("next_retry_at", *payout.NextRetryAt).Msg("payout attempt failed, retry scheduled")
	} else {
		evt.Msg("payout failed terminally, reservation restored")
	}
}

// RunBatch executes a queued batch dispatch as one unit of work: each
// item moves APPROVED -> PROCESSING and runs its attempt inline, and no
// item's failure aborts the rest.
func (s *PayoutServiceImpl) RunBatch(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		payout, err := s.payoutRepo.GetByID(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("payout_id", id.String()).Msg("batch item load failed")
			continue
		}
		if payout == nil || payout.Status != domain.PayoutStatusApproved {
			s.log.Debug().Str("payout_id", id.String()).Msg("batch item not approved, skipping")
			continue
		}

		now := time.Now().UTC()
		payout.Status = domain.PayoutStatusProcessing
		payout.ProcessedAt = &now
		payout.AttemptCount++
		payout.NextRetryAt = nil

		if err := s.persistCAS(ctx, payout, domain.PayoutStatusApproved, nil); err != nil {
			s.log.Debug().Err(err).Str("payout_id", id.String()).Msg("batch item lost transition race, skipping")
			continue
		}

		if err := s.RunAttempt(ctx, id); err != nil {
			s.log.Error().Err(err).Str("payout_id", id.String()).Msg("batch item attempt failed")
		}
	}
	return nil
}

// SweepRetries re-dispatches every failed request whose scheduled retry
// time has passed. Races with manual retries are benign: the loser's
// CAS misses and the item is skipped.
func (s *PayoutServiceImpl) SweepRetries(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	eligible, err := s.payoutRepo.ListRetryEligible(ctx, now, sweepBatchLimit)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list retry-eligible payouts: %w", err))
	}

	queued := 0
	for i := range eligible {
		p := &eligible[i]
		if !s.retry.Due(p, now) {
			continue
		}
		if _, err := s.Retry(ctx, p.ID); err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && (appErr.Code == "PAY_001" || appErr.Code == "PAY_003") {
				continue
			}
			s.log.Error().Err(err).Str("payout_id", p.ID.String()).Msg("sweep retry failed")
			continue
		}
		queued++
	}

	if queued > 0 {
		s.log.Info().Int("queued", queued).Msg("retry sweep dispatched payouts")
	}
	return queued, nil
}

// Get returns one payout request by ID.
func (s *PayoutServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	return s.mustGet(ctx, id)
}

// List returns a filtered, paginated page of payout requests plus the
// total match count.
func (s *PayoutServiceImpl) List(ctx context.Context, params ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 || params.PageSize > 200 {
		params.PageSize = 50
	}
	items, total, err := s.payoutRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list payouts: %w", err))
	}
	return items, total, nil
}

// Stats returns aggregate payout statistics, optionally bounded to
// requests created at or after periodStart (unix seconds).
func (s *PayoutServiceImpl) Stats(ctx context.Context, periodStart *int64) (*ports.PayoutStats, error) {
	stats, err := s.payoutRepo.GetStats(ctx, periodStart)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payout stats: %w", err))
	}
	return stats, nil
}

func (s *PayoutServiceImpl) mustGet(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	payout, err := s.payoutRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil {
		return nil, apperror.ErrNotFound("payout request")
	}
	return payout, nil
}

// persistCAS writes the payout through UpdateCAS inside a transaction,
// running sideEffect (balance mutation) in the same transaction after
// the guard passes. A guard miss rolls everything back and surfaces as
// PreconditionFailed.
func (s *PayoutServiceImpl) persistCAS(
	ctx context.Context,
	payout *domain.PayoutRequest,
	expected domain.PayoutStatus,
	sideEffect func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error,
) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.payoutRepo.UpdateCAS(ctx, dbTx, payout, expected)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("update payout: %w", err))
	}
	if !ok {
		return apperror.ErrPreconditionFailed(fmt.Sprintf("request is no longer %s", expected))
	}

	if sideEffect != nil {
		if err := sideEffect(ctx, dbTx, payout); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func retryIneligibilityReason(p *domain.PayoutRequest) string {
	switch {
	case p.Status != domain.PayoutStatusFailed:
		return fmt.Sprintf("request is %s, not FAILED", p.Status)
	case !p.ErrorRetryable:
		return "last error is not retryable"
	default:
		return fmt.Sprintf("attempts exhausted (%d of %d)", p.AttemptCount, p.MaxAttempts)
	}
}
