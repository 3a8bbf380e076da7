package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserBalance is the cached total derived from the ledger stream.
// Available holds withdrawable funds; Reserved holds funds earmarked
// for live payout requests. Both are always >= 0.
type UserBalance struct {
	UserID    uuid.UUID `json:"user_id"`
	Available int64     `json:"available"` // In cents
	Reserved  int64     `json:"reserved"`  // In cents
	UpdatedAt time.Time `json:"updated_at"`
}
