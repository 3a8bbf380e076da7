package service

import (
	"context"
	"errors"
	"fmt"

	"payout-engine/internal/core/ports"
	"payout-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxBatchSize bounds one batch operation.
const maxBatchSize = 500

// batchRejectionReason is recorded on requests rejected through a batch.
const batchRejectionReason = "Rejected in batch review"

// BatchServiceImpl implements ports.BatchService. Approve and reject
// apply synchronously item by item; process enqueues one queued task
// covering the whole batch.
type BatchServiceImpl struct {
	payoutSvc  ports.PayoutService
	dispatcher ports.TaskDispatcher
	log        zerolog.Logger
}

// NewBatchService creates a new BatchServiceImpl.
func NewBatchService(payoutSvc ports.PayoutService, dispatcher ports.TaskDispatcher, log zerolog.Logger) *BatchServiceImpl {
	return &BatchServiceImpl{
		payoutSvc:  payoutSvc,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Run applies one action across the given payout requests. Items are
// isolated: one item's failure is recorded in its result and the rest
// of the batch proceeds.
func (s *BatchServiceImpl) Run(ctx context.Context, ids []uuid.UUID, action ports.BatchAction) (*ports.BatchResult, error) {
	if len(ids) == 0 {
		return nil, apperror.Validation("batch requires at least one payout id")
	}
	if len(ids) > maxBatchSize {
		return nil, apperror.Validation(fmt.Sprintf("batch size exceeds limit of %d", maxBatchSize))
	}

	switch action {
	case ports.BatchActionApprove, ports.BatchActionReject:
		return s.runSync(ctx, ids, action), nil
	case ports.BatchActionProcess:
		return s.enqueueProcess(ctx, ids)
	default:
		return nil, apperror.ErrBatchActionUnknown(string(action))
	}
}

func (s *BatchServiceImpl) runSync(ctx context.Context, ids []uuid.UUID, action ports.BatchAction) *ports.BatchResult {
	result := &ports.BatchResult{Total: len(ids), Items: make([]ports.BatchItemResult, 0, len(ids))}

	for _, id := range ids {
		var err error
		switch action {
		case ports.BatchActionApprove:
			_, err = s.payoutSvc.Approve(ctx, id)
		case ports.BatchActionReject:
			_, err = s.payoutSvc.Reject(ctx, id, batchRejectionReason)
		}

		item := ports.BatchItemResult{ID: id, Success: err == nil}
		if err != nil {
			item.Reason = batchFailureReason(err)
			result.Failed++
		} else {
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	s.log.Info().
		Str("action", string(action)).
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("batch action applied")

	return result
}

// enqueueProcess dispatches the whole batch as a single unit-of-work
// task. Item outcomes are decided later by the worker; the result here
// reports queueing only.
func (s *BatchServiceImpl) enqueueProcess(ctx context.Context, ids []uuid.UUID) (*ports.BatchResult, error) {
	taskID, err := s.dispatcher.Enqueue(ctx, ports.TaskKindBatch, ports.BatchTaskPayload{PayoutIDs: ids})
	if err != nil {
		return nil, apperror.ErrDispatchUnavailable(err)
	}

	result := &ports.BatchResult{Total: len(ids), Succeeded: len(ids), Items: make([]ports.BatchItemResult, 0, len(ids))}
	for _, id := range ids {
		result.Items = append(result.Items, ports.BatchItemResult{ID: id, Success: true, Reason: "queued"})
	}

	s.log.Info().
		Str("task_id", taskID).
		Int("total", len(ids)).
		Msg("batch processing enqueued")

	return result, nil
}

// batchFailureReason extracts a stable, client-safe reason string.
func batchFailureReason(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
