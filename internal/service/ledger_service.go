package service

import (
	"context"
	"fmt"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
	"payout-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.Ledger. Every mutation takes the
// balance row lock first, so concurrent operations on the same user
// serialize and the invariant available + reserved == credits - paid-out
// holds at all times.
type LedgerServiceImpl struct {
	balanceRepo ports.BalanceRepository
	ledgerRepo  ports.LedgerRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	balanceRepo ports.BalanceRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		log:         log,
	}
}

// Reserve moves amount from available to reserved and appends a RESERVE
// entry. Runs inside the caller's transaction so the reservation commits
// atomically with the payout request it backs.
func (s *LedgerServiceImpl) Reserve(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, payoutID uuid.UUID) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}

	bal, err := s.balanceRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}
	if bal == nil || bal.Available < amount {
		return apperror.ErrInsufficientFunds()
	}

	newAvailable := bal.Available - amount
	newReserved := bal.Reserved + amount
	if err := s.balanceRepo.UpdateAmounts(ctx, tx, userID, newAvailable, newReserved); err != nil {
		return apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          domain.LedgerKindReserve,
		Amount:        -amount,
		BalanceBefore: bal.Available,
		BalanceAfter:  newAvailable,
		PayoutID:      &payoutID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("append reserve entry: %w", err))
	}

	s.log.Debug().
		Str("user_id", userID.String()).
		Str("payout_id", payoutID.String()).
		Int64("amount", amount).
		Msg("funds reserved")

	return nil
}

// Restore returns the payout's full reservation to available and appends
// a RESTORE entry. Callers invoke it exactly once per request, inside
// the transaction that rejects or terminally fails it.
func (s *LedgerServiceImpl) Restore(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error {
	bal, err := s.balanceRepo.GetForUpdate(ctx, tx, payout.UserID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}
	if bal == nil {
		return apperror.ErrBalanceNotFound()
	}

	newAvailable := bal.Available + payout.Amount
	newReserved := bal.Reserved - payout.Amount
	if err := s.balanceRepo.UpdateAmounts(ctx, tx, payout.UserID, newAvailable, newReserved); err != nil {
		return apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        payout.UserID,
		Kind:          domain.LedgerKindRestore,
		Amount:        payout.Amount,
		BalanceBefore: bal.Available,
		BalanceAfter:  newAvailable,
		PayoutID:      &payout.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("append restore entry: %w", err))
	}

	s.log.Info().
		Str("user_id", payout.UserID.String()).
		Str("payout_id", payout.ID.String()).
		Int64("amount", payout.Amount).
		Msg("reservation restored")

	return nil
}

// ChargeFee settles a completed payout's reservation: the reserved
// amount leaves the balance entirely and a FEE entry records the cost.
// Available is untouched since the funds left it at reservation time.
func (s *LedgerServiceImpl) ChargeFee(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest, fee int64) error {
	bal, err := s.balanceRepo.GetForUpdate(ctx, tx, payout.UserID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}
	if bal == nil {
		return apperror.ErrBalanceNotFound()
	}

	newReserved := bal.Reserved - payout.Amount
	if err := s.balanceRepo.UpdateAmounts(ctx, tx, payout.UserID, bal.Available, newReserved); err != nil {
		return apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        payout.UserID,
		Kind:          domain.LedgerKindFee,
		Amount:        -fee,
		BalanceBefore: bal.Available,
		BalanceAfter:  bal.Available,
		PayoutID:      &payout.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return apperror.InternalError(fmt.Errorf("append fee entry: %w", err))
	}

	return nil
}

// Credit accrues new earnings: it increments available by amount,
// creating the balance row on first credit, and appends a CREDIT entry.
func (s *LedgerServiceImpl) Credit(ctx context.Context, userID uuid.UUID, amount int64) (*domain.UserBalance, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	bal, err := s.balanceRepo.GetForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}

	var before int64
	if bal == nil {
		bal = &domain.UserBalance{
			UserID:    userID,
			Available: amount,
			Reserved:  0,
			UpdatedAt: now,
		}
		if err := s.balanceRepo.Create(ctx, dbTx, bal); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create balance: %w", err))
		}
	} else {
		before = bal.Available
		bal.Available += amount
		bal.UpdatedAt = now
		if err := s.balanceRepo.UpdateAmounts(ctx, dbTx, userID, bal.Available, bal.Reserved); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          domain.LedgerKindCredit,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  bal.Available,
		CreatedAt:     now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append credit entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Int64("available", bal.Available).
		Msg("balance credited")

	return bal, nil
}

// Balance returns the user's current balance.
func (s *LedgerServiceImpl) Balance(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error) {
	bal, err := s.balanceRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get balance: %w", err))
	}
	if bal == nil {
		return nil, apperror.ErrBalanceNotFound()
	}
	return bal, nil
}

// Entries returns the user's most recent ledger entries.
func (s *LedgerServiceImpl) Entries(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.ledgerRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, nil
}
