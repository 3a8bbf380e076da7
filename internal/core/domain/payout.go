package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutMethod identifies the external rail a payout is delivered over.
type PayoutMethod string

const (
	MethodStripeBank PayoutMethod = "stripe_bank"
	MethodPayPal     PayoutMethod = "paypal"
	MethodCheck      PayoutMethod = "check"
	MethodOther      PayoutMethod = "other"
)

// PayoutStatus represents the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusApproved   PayoutStatus = "APPROVED"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
	PayoutStatusRejected   PayoutStatus = "REJECTED"
)

// PayoutPriority influences the attempt timeout budget on the worker side.
type PayoutPriority string

const (
	PriorityLow    PayoutPriority = "low"
	PriorityNormal PayoutPriority = "normal"
	PriorityHigh   PayoutPriority = "high"
)

// DefaultMaxAttempts bounds automatic retries per payout request.
const DefaultMaxAttempts = 3

// PayoutRequest represents one disbursement of accrued earnings from
// creation to a terminal outcome. Amount is immutable after creation;
// Fee and NetAmount are set only on success (NetAmount = Amount - Fee).
type PayoutRequest struct {
	ID              uuid.UUID      `json:"id"`
	UserID          uuid.UUID      `json:"user_id"`
	Amount          int64          `json:"amount"` // In cents
	Method          PayoutMethod   `json:"method"`
	Status          PayoutStatus   `json:"status"`
	Priority        PayoutPriority `json:"priority"`
	RequestedAt     time.Time      `json:"requested_at"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"` // Last dispatch to a processor
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	AttemptCount    int            `json:"attempt_count"`
	MaxAttempts     int            `json:"max_attempts"`
	LastError       *string        `json:"last_error,omitempty"`
	ErrorRetryable  bool           `json:"error_retryable"`
	NextRetryAt     *time.Time     `json:"next_retry_at,omitempty"`
	ExternalTxnID   *string        `json:"external_txn_id,omitempty"`
	Fee             int64          `json:"fee"`
	NetAmount       int64          `json:"net_amount"`
	Notes           string         `json:"notes,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
}

// IsRetryEligible returns true if the request failed with a retryable
// error and still has attempts left. Timing is the RetryScheduler's call.
func (p *PayoutRequest) IsRetryEligible() bool {
	return p.Status == PayoutStatusFailed &&
		p.ErrorRetryable &&
		p.AttemptCount < p.MaxAttempts
}

// IsTerminal returns true if no further automatic transition can occur.
func (p *PayoutRequest) IsTerminal() bool {
	switch p.Status {
	case PayoutStatusCompleted, PayoutStatusRejected:
		return true
	case PayoutStatusFailed:
		return !p.IsRetryEligible()
	}
	return false
}

// DaysPending reports how long the request has been waiting, for display.
func (p *PayoutRequest) DaysPending(now time.Time) int {
	end := now
	if p.CompletedAt != nil {
		end = *p.CompletedAt
	}
	d := int(end.Sub(p.RequestedAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
