package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
	"payout-engine/internal/core/ports/mocks"
	"payout-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type payoutTestDeps struct {
	svc        *PayoutServiceImpl
	payoutRepo *mocks.MockPayoutRepository
	ledger     *mocks.MockLedger
	processors *mocks.MockProcessorRegistry
	dispatcher *mocks.MockTaskDispatcher
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupPayoutService(t *testing.T) *payoutTestDeps {
	ctrl := gomock.NewController(t)
	d := &payoutTestDeps{
		payoutRepo: mocks.NewMockPayoutRepository(ctrl),
		ledger:     mocks.NewMockLedger(ctrl),
		processors: mocks.NewMockProcessorRegistry(ctrl),
		dispatcher: mocks.NewMockTaskDispatcher(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewPayoutService(
		d.payoutRepo, d.ledger, d.processors, d.dispatcher, d.transactor,
		domain.DefaultMethods(), DefaultRetryPolicy(), zerolog.Nop(),
	)
	return d
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

// ==================== Create Tests ====================

func TestPayoutService_Create_Success(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledger.EXPECT().Reserve(ctx, tx, userID, int64(5000), gomock.Any()).Return(nil)
	d.payoutRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest) error {
			assert.Equal(t, domain.PayoutStatusPending, p.Status)
			assert.Equal(t, domain.PriorityNormal, p.Priority)
			assert.Equal(t, 3, p.MaxAttempts)
			assert.Zero(t, p.AttemptCount)
			return nil
		})

	payout, err := d.svc.Create(ctx, ports.CreatePayoutRequest{
		UserID: userID,
		Amount: 5000,
		Method: domain.MethodPayPal,
	})
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)
	assert.Equal(t, int64(5000), payout.Amount)
}

func TestPayoutService_Create_InvalidAmount(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), ports.CreatePayoutRequest{
		UserID: uuid.New(), Amount: 0, Method: domain.MethodPayPal,
	})
	assertCode(t, err, "VAL_001")
}

func TestPayoutService_Create_UnknownMethod(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), ports.CreatePayoutRequest{
		UserID: uuid.New(), Amount: 5000, Method: "wire",
	})
	assertCode(t, err, "VAL_002")
}

func TestPayoutService_Create_BelowMethodMinimum(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	// check requires at least 5000 cents
	_, err := d.svc.Create(context.Background(), ports.CreatePayoutRequest{
		UserID: uuid.New(), Amount: 4999, Method: domain.MethodCheck,
	})
	assertCode(t, err, "VAL_003")
}

func TestPayoutService_Create_InsufficientFunds_NothingPersisted(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledger.EXPECT().Reserve(ctx, tx, userID, int64(5000), gomock.Any()).
		Return(apperror.ErrInsufficientFunds())

	_, err := d.svc.Create(ctx, ports.CreatePayoutRequest{
		UserID: userID, Amount: 5000, Method: domain.MethodPayPal,
	})
	assertCode(t, err, "BAL_001")
}

// ==================== Approve / Reject Tests ====================

func TestPayoutService_Approve_Success(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusPending,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusPending).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusApproved, p.Status)
			assert.NotNil(t, p.ApprovedAt)
			return true, nil
		})

	payout, err := d.svc.Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusApproved, payout.Status)
}

func TestPayoutService_Approve_WrongState(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusCompleted,
	}, nil)

	_, err := d.svc.Approve(ctx, id)
	assertCode(t, err, "PAY_001")
}

func TestPayoutService_Approve_NotFound(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	_, err := d.svc.Approve(ctx, id)
	assertCode(t, err, "PAY_002")
}

func TestPayoutService_Approve_CASMiss(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusPending,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusPending).Return(false, nil)

	_, err := d.svc.Approve(ctx, id)
	assertCode(t, err, "PAY_001")
}

func TestPayoutService_Reject_RestoresReservation(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusPending, Amount: 5000,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusPending).Return(true, nil)
	d.ledger.EXPECT().Restore(ctx, tx, gomock.Any()).Return(nil)

	payout, err := d.svc.Reject(ctx, id, "identity check failed")
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusRejected, payout.Status)
	require.NotNil(t, payout.RejectionReason)
	assert.Equal(t, "identity check failed", *payout.RejectionReason)
	assert.NotNil(t, payout.CompletedAt)
}

// ==================== Process / Retry Tests ====================

func TestPayoutService_Process_Success(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusApproved, MaxAttempts: 3,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusApproved).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusProcessing, p.Status)
			assert.Equal(t, 1, p.AttemptCount)
			assert.NotNil(t, p.ProcessedAt)
			return true, nil
		})
	d.dispatcher.EXPECT().Enqueue(ctx, ports.TaskKindProcess, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload any) (string, error) {
			p, ok := payload.(ports.ProcessTaskPayload)
			require.True(t, ok)
			assert.Equal(t, id, p.PayoutID)
			assert.Equal(t, 1, p.Attempt)
			return "task-1", nil
		})

	payout, err := d.svc.Process(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusProcessing, payout.Status)
}

func TestPayoutService_Process_DuplicateLosesRace(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusApproved, MaxAttempts: 3,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// Concurrent caller already moved it to PROCESSING.
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusApproved).Return(false, nil)

	_, err := d.svc.Process(ctx, id)
	assertCode(t, err, "PAY_001")
}

func TestPayoutService_Process_DispatchUnavailable_SchedulesRetry(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusApproved, MaxAttempts: 3,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusApproved).Return(true, nil)
	d.dispatcher.EXPECT().Enqueue(ctx, ports.TaskKindProcess, gomock.Any()).
		Return("", errors.New("queue down"))
	// The failure is recorded as a retryable FAILED with a scheduled retry.
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusProcessing).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusFailed, p.Status)
			assert.True(t, p.ErrorRetryable)
			assert.NotNil(t, p.NextRetryAt)
			return true, nil
		})

	_, err := d.svc.Process(ctx, id)
	assertCode(t, err, "DSP_001")
}

func TestPayoutService_Retry_Eligible(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	lastErr := "Network timeout during processing"

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID:             id,
		Status:         domain.PayoutStatusFailed,
		ErrorRetryable: true,
		LastError:      &lastErr,
		AttemptCount:   1,
		MaxAttempts:    3,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusFailed).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusProcessing, p.Status)
			assert.Equal(t, 2, p.AttemptCount)
			assert.Nil(t, p.NextRetryAt)
			return true, nil
		})
	d.dispatcher.EXPECT().Enqueue(ctx, ports.TaskKindProcess, gomock.Any()).Return("task-2", nil)

	payout, err := d.svc.Retry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, payout.AttemptCount)
}

func TestPayoutService_Retry_NotEligible(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	tests := []struct {
		name   string
		payout *domain.PayoutRequest
	}{
		{
			name:   "not failed",
			payout: &domain.PayoutRequest{Status: domain.PayoutStatusCompleted},
		},
		{
			name:   "non-retryable error",
			payout: &domain.PayoutRequest{Status: domain.PayoutStatusFailed, ErrorRetryable: false, MaxAttempts: 3},
		},
		{
			name:   "attempts exhausted",
			payout: &domain.PayoutRequest{Status: domain.PayoutStatusFailed, ErrorRetryable: true, AttemptCount: 3, MaxAttempts: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			id := uuid.New()
			tt.payout.ID = id
			d.payoutRepo.EXPECT().GetByID(ctx, id).Return(tt.payout, nil)

			_, err := d.svc.Retry(ctx, id)
			assertCode(t, err, "PAY_003")
		})
	}
}

// ==================== RunAttempt Tests ====================

func TestPayoutService_RunAttempt_Success(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	proc := mocks.NewMockProcessor(d.ctrl)

	payout := &domain.PayoutRequest{
		ID:           id,
		UserID:       uuid.New(),
		Amount:       10000,
		Method:       domain.MethodPayPal,
		Status:       domain.PayoutStatusProcessing,
		Priority:     domain.PriorityNormal,
		AttemptCount: 1,
		MaxAttempts:  3,
	}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(payout, nil)
	d.processors.EXPECT().Resolve(domain.MethodPayPal).Return(proc, nil)
	proc.EXPECT().Attempt(gomock.Any(), gomock.Any()).Return(ports.AttemptOutcome{
		Success:       true,
		ExternalTxnID: "PAY-7F3A2B9C",
		Fee:           200,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusProcessing).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusCompleted, p.Status)
			require.NotNil(t, p.ExternalTxnID)
			assert.Equal(t, "PAY-7F3A2B9C", *p.ExternalTxnID)
			assert.Equal(t, int64(200), p.Fee)
			assert.Equal(t, int64(9800), p.NetAmount)
			assert.NotNil(t, p.CompletedAt)
			return true, nil
		})
	d.ledger.EXPECT().ChargeFee(ctx, tx, gomock.Any(), int64(200)).Return(nil)

	err := d.svc.RunAttempt(ctx, id)
	require.NoError(t, err)
}

func TestPayoutService_RunAttempt_RetryableFailure_SchedulesRetry(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	proc := mocks.NewMockProcessor(d.ctrl)

	payout := &domain.PayoutRequest{
		ID:           id,
		UserID:       uuid.New(),
		Amount:       10000,
		Method:       domain.MethodStripeBank,
		Status:       domain.PayoutStatusProcessing,
		Priority:     domain.PriorityNormal,
		AttemptCount: 1,
		MaxAttempts:  3,
	}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(payout, nil)
	d.processors.EXPECT().Resolve(domain.MethodStripeBank).Return(proc, nil)
	proc.EXPECT().Attempt(gomock.Any(), gomock.Any()).Return(ports.AttemptOutcome{
		Success:      false,
		ErrorMessage: "Network timeout during processing",
		Retryable:    true,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusProcessing).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusFailed, p.Status)
			assert.True(t, p.ErrorRetryable)
			require.NotNil(t, p.NextRetryAt)
			// First attempt failed: next retry roughly one hour out.
			assert.WithinDuration(t, time.Now().Add(time.Hour), *p.NextRetryAt, time.Minute)
			assert.Nil(t, p.CompletedAt)
			return true, nil
		})

	err := d.svc.RunAttempt(ctx, id)
	require.NoError(t, err)
}

func TestPayoutService_RunAttempt_TerminalFailure_RestoresFunds(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	proc := mocks.NewMockProcessor(d.ctrl)

	payout := &domain.PayoutRequest{
		ID:           id,
		UserID:       uuid.New(),
		Amount:       10000,
		Method:       domain.MethodOther,
		Status:       domain.PayoutStatusProcessing,
		Priority:     domain.PriorityHigh,
		AttemptCount: 1,
		MaxAttempts:  3,
	}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(payout, nil)
	d.processors.EXPECT().Resolve(domain.MethodOther).Return(proc, nil)
	proc.EXPECT().Attempt(gomock.Any(), gomock.Any()).Return(ports.AttemptOutcome{
		Success:      false,
		ErrorMessage: "Invalid bank account details",
		Retryable:    false,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusProcessing).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusFailed, p.Status)
			assert.False(t, p.ErrorRetryable)
			assert.Nil(t, p.NextRetryAt)
			assert.NotNil(t, p.CompletedAt)
			return true, nil
		})
	d.ledger.EXPECT().Restore(ctx, tx, gomock.Any()).Return(nil)

	err := d.svc.RunAttempt(ctx, id)
	require.NoError(t, err)
}

func TestPayoutService_RunAttempt_ExhaustedAttempts_RestoresFunds(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	proc := mocks.NewMockProcessor(d.ctrl)

	payout := &domain.PayoutRequest{
		ID:           id,
		UserID:       uuid.New(),
		Amount:       10000,
		Method:       domain.MethodPayPal,
		Status:       domain.PayoutStatusProcessing,
		Priority:     domain.PriorityNormal,
		AttemptCount: 3, // Final attempt
		MaxAttempts:  3,
	}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(payout, nil)
	d.processors.EXPECT().Resolve(domain.MethodPayPal).Return(proc, nil)
	proc.EXPECT().Attempt(gomock.Any(), gomock.Any()).Return(ports.AttemptOutcome{
		Success:      false,
		ErrorMessage: "Network timeout during processing",
		Retryable:    true,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusProcessing).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest, _ domain.PayoutStatus) (bool, error) {
			assert.Equal(t, domain.PayoutStatusFailed, p.Status)
			// Retryable flag preserved, but no further retries are scheduled.
			assert.True(t, p.ErrorRetryable)
			assert.Nil(t, p.NextRetryAt)
			assert.NotNil(t, p.CompletedAt)
			assert.False(t, p.IsRetryEligible())
			return true, nil
		})
	d.ledger.EXPECT().Restore(ctx, tx, gomock.Any()).Return(nil)

	err := d.svc.RunAttempt(ctx, id)
	require.NoError(t, err)
}

func TestPayoutService_RunAttempt_Redelivery_NoOps(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	// Already finalized by a previous delivery.
	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(&domain.PayoutRequest{
		ID: id, Status: domain.PayoutStatusCompleted,
	}, nil)

	err := d.svc.RunAttempt(ctx, id)
	require.NoError(t, err)
}

func TestPayoutService_RunAttempt_UnknownPayout_Drops(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	err := d.svc.RunAttempt(ctx, id)
	require.NoError(t, err)
}

func TestPayoutService_RunAttempt_FinalizeRaceAbsorbed(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	proc := mocks.NewMockProcessor(d.ctrl)

	payout := &domain.PayoutRequest{
		ID:           id,
		UserID:       uuid.New(),
		Amount:       10000,
		Method:       domain.MethodPayPal,
		Status:       domain.PayoutStatusProcessing,
		Priority:     domain.PriorityNormal,
		AttemptCount: 1,
		MaxAttempts:  3,
	}

	d.payoutRepo.EXPECT().GetByID(ctx, id).Return(payout, nil)
	d.processors.EXPECT().Resolve(domain.MethodPayPal).Return(proc, nil)
	proc.EXPECT().Attempt(gomock.Any(), gomock.Any()).Return(ports.AttemptOutcome{
		Success:       true,
		ExternalTxnID: "PAY-AAAA1111",
		Fee:           200,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// Another finalizer got there first.
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusProcessing).Return(false, nil)

	err := d.svc.RunAttempt(ctx, id)
	require.NoError(t, err)
}

// ==================== Sweep / Batch Tests ====================

func TestPayoutService_SweepRetries_QueuesDueRequests(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	lastErr := "Daily transfer limit exceeded"

	due := domain.PayoutRequest{
		ID:             uuid.New(),
		Status:         domain.PayoutStatusFailed,
		ErrorRetryable: true,
		LastError:      &lastErr,
		AttemptCount:   1,
		MaxAttempts:    3,
		NextRetryAt:    &past,
	}
	notDue := domain.PayoutRequest{
		ID:             uuid.New(),
		Status:         domain.PayoutStatusFailed,
		ErrorRetryable: true,
		LastError:      &lastErr,
		AttemptCount:   1,
		MaxAttempts:    3,
		NextRetryAt:    &future,
	}

	d.payoutRepo.EXPECT().ListRetryEligible(ctx, gomock.Any(), sweepBatchLimit).
		Return([]domain.PayoutRequest{due, notDue}, nil)

	// Only the due request is re-dispatched.
	d.payoutRepo.EXPECT().GetByID(ctx, due.ID).Return(&due, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusFailed).Return(true, nil)
	d.dispatcher.EXPECT().Enqueue(ctx, ports.TaskKindProcess, gomock.Any()).Return("task-3", nil)

	queued, err := d.svc.SweepRetries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
}

func TestPayoutService_SweepRetries_RaceWithManualRetry(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	lastErr := "Currency conversion failed"
	past := time.Now().Add(-time.Minute)

	row := domain.PayoutRequest{
		ID:             uuid.New(),
		Status:         domain.PayoutStatusFailed,
		ErrorRetryable: true,
		LastError:      &lastErr,
		AttemptCount:   1,
		MaxAttempts:    3,
		NextRetryAt:    &past,
	}

	d.payoutRepo.EXPECT().ListRetryEligible(ctx, gomock.Any(), sweepBatchLimit).
		Return([]domain.PayoutRequest{row}, nil)
	// By the time the sweep re-reads it, a manual retry already moved it.
	d.payoutRepo.EXPECT().GetByID(ctx, row.ID).Return(&domain.PayoutRequest{
		ID: row.ID, Status: domain.PayoutStatusProcessing,
	}, nil)

	queued, err := d.svc.SweepRetries(ctx)
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestPayoutService_RunBatch_IsolatesItems(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	proc := mocks.NewMockProcessor(d.ctrl)

	okID := uuid.New()
	skipID := uuid.New()
	userID := uuid.New()

	// First item: approved, processes successfully.
	d.payoutRepo.EXPECT().GetByID(ctx, okID).Return(&domain.PayoutRequest{
		ID: okID, UserID: userID, Amount: 10000,
		Method: domain.MethodPayPal, Status: domain.PayoutStatusApproved,
		Priority: domain.PriorityNormal, MaxAttempts: 3,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusApproved).Return(true, nil)
	d.payoutRepo.EXPECT().GetByID(ctx, okID).Return(&domain.PayoutRequest{
		ID: okID, UserID: userID, Amount: 10000,
		Method: domain.MethodPayPal, Status: domain.PayoutStatusProcessing,
		Priority: domain.PriorityNormal, AttemptCount: 1, MaxAttempts: 3,
	}, nil)
	d.processors.EXPECT().Resolve(domain.MethodPayPal).Return(proc, nil)
	proc.EXPECT().Attempt(gomock.Any(), gomock.Any()).Return(ports.AttemptOutcome{
		Success: true, ExternalTxnID: "PAY-BBBB2222", Fee: 200,
	}, nil)
	d.payoutRepo.EXPECT().UpdateCAS(ctx, tx, gomock.Any(), domain.PayoutStatusProcessing).Return(true, nil)
	d.ledger.EXPECT().ChargeFee(ctx, tx, gomock.Any(), int64(200)).Return(nil)

	// Second item: not approved, skipped without aborting the batch.
	d.payoutRepo.EXPECT().GetByID(ctx, skipID).Return(&domain.PayoutRequest{
		ID: skipID, Status: domain.PayoutStatusPending,
	}, nil)

	err := d.svc.RunBatch(ctx, []uuid.UUID{okID, skipID})
	require.NoError(t, err)
}

// ==================== Query Tests ====================

func TestPayoutService_List_DefaultsPagination(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.payoutRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
			assert.Equal(t, 1, params.Page)
			assert.Equal(t, 50, params.PageSize)
			return []domain.PayoutRequest{}, 0, nil
		})

	_, _, err := d.svc.List(ctx, ports.PayoutListParams{})
	require.NoError(t, err)
}

func TestPayoutService_Stats(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	expected := &ports.PayoutStats{TotalRequests: 10, Completed: 7, Failed: 2, Rejected: 1}

	d.payoutRepo.EXPECT().GetStats(ctx, gomock.Nil()).Return(expected, nil)

	stats, err := d.svc.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, expected, stats)
}
