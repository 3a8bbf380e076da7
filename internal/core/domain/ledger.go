package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerKind represents the kind of balance-affecting event.
type LedgerKind string

const (
	LedgerKindCredit  LedgerKind = "CREDIT"  // Upstream earnings accrual
	LedgerKindReserve LedgerKind = "RESERVE" // Funds earmarked for a payout
	LedgerKindRestore LedgerKind = "RESTORE" // Reservation returned to available
	LedgerKindFee     LedgerKind = "FEE"     // Processing fee carved out of a settled reservation
)

// LedgerEntry is an immutable, append-only audit record of one balance
// event. Amount is signed against the available balance; BalanceBefore
// and BalanceAfter snapshot available at append time, so the running
// balance is reconstructible by folding the stream.
type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Kind          LedgerKind `json:"kind"`
	Amount        int64      `json:"amount"` // In cents, signed
	BalanceBefore int64      `json:"balance_before"`
	BalanceAfter  int64      `json:"balance_after"`
	PayoutID      *uuid.UUID `json:"payout_id,omitempty"` // nil for CREDIT entries
	CreatedAt     time.Time  `json:"created_at"`
}
