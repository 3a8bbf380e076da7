package domain

import (
	"time"

	"github.com/google/uuid"
)

// AdminStatus represents the account state of an operator.
type AdminStatus string

const (
	AdminStatusActive    AdminStatus = "ACTIVE"
	AdminStatusSuspended AdminStatus = "SUSPENDED"
)

// Admin is an operator account allowed to approve, reject and batch
// payout requests. Passwords are stored as Argon2id hashes.
type Admin struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Status       AdminStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// IsActive returns true if the admin may authenticate.
func (a *Admin) IsActive() bool {
	return a.Status == AdminStatusActive
}
