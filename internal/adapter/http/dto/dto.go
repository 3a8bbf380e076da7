package dto

import (
	"sort"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
)

// RegisterRequest is the request body for admin registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for admin login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	AdminID  string `json:"admin_id"`
	Username string `json:"username"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreatePayoutRequest is the request body for creating a payout request.
type CreatePayoutRequest struct {
	UserID   string `json:"user_id" binding:"required,uuid"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Method   string `json:"method" binding:"required"`
	Priority string `json:"priority,omitempty" binding:"omitempty,oneof=low normal high"`
	Notes    string `json:"notes,omitempty" binding:"max=500"`
}

// RejectPayoutRequest is the request body for rejecting a payout request.
type RejectPayoutRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// BatchRequest is the request body for a batch operation.
type BatchRequest struct {
	Action    string   `json:"action" binding:"required"`
	PayoutIDs []string `json:"payout_ids" binding:"required,min=1,dive,uuid"`
}

// CreditRequest is the request body for crediting a user's balance.
type CreditRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// PayoutResponse is the API view of a payout request.
type PayoutResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Amount          int64   `json:"amount"`
	Method          string  `json:"method"`
	Status          string  `json:"status"`
	Priority        string  `json:"priority"`
	RequestedAt     string  `json:"requested_at"`
	ApprovedAt      *string `json:"approved_at,omitempty"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty"`
	AttemptCount    int     `json:"attempt_count"`
	MaxAttempts     int     `json:"max_attempts"`
	LastError       *string `json:"last_error,omitempty"`
	ErrorRetryable  bool    `json:"error_retryable"`
	NextRetryAt     *string `json:"next_retry_at,omitempty"`
	ExternalTxnID   *string `json:"external_txn_id,omitempty"`
	Fee             int64   `json:"fee"`
	NetAmount       int64   `json:"net_amount"`
	Notes           string  `json:"notes,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	DaysPending     int     `json:"days_pending"`
}

// MethodResponse describes one payout method's availability and fees.
type MethodResponse struct {
	Method         string `json:"method"`
	DisplayName    string `json:"display_name"`
	FeeModel       string `json:"fee_model"`
	FeeAmount      int64  `json:"fee_amount,omitempty"`
	FeeBps         int64  `json:"fee_bps,omitempty"`
	MinAmount      int64  `json:"min_amount"`
	ProcessingTime string `json:"processing_time"`
}

// PayoutListResponse wraps a paginated payout list.
type PayoutListResponse struct {
	Items      []PayoutResponse `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	UserID    string `json:"user_id"`
	Available int64  `json:"available"`
	Reserved  int64  `json:"reserved"`
	UpdatedAt string `json:"updated_at"`
}

// LedgerEntryResponse is the API view of one ledger entry.
type LedgerEntryResponse struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	Amount        int64   `json:"amount"`
	BalanceBefore int64   `json:"balance_before"`
	BalanceAfter  int64   `json:"balance_after"`
	PayoutID      *string `json:"payout_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// StatsResponse is the response for payout statistics.
type StatsResponse struct {
	TotalRequests  int64 `json:"total_requests"`
	Completed      int64 `json:"completed"`
	Failed         int64 `json:"failed"`
	Rejected       int64 `json:"rejected"`
	InFlight       int64 `json:"in_flight"`
	TotalRequested int64 `json:"total_requested"`
	TotalPaidOut   int64 `json:"total_paid_out"`
	TotalFees      int64 `json:"total_fees"`
}

// NewPayoutResponse maps a domain payout request to its API view.
func NewPayoutResponse(p *domain.PayoutRequest) PayoutResponse {
	return PayoutResponse{
		ID:              p.ID.String(),
		UserID:          p.UserID.String(),
		Amount:          p.Amount,
		Method:          string(p.Method),
		Status:          string(p.Status),
		Priority:        string(p.Priority),
		RequestedAt:     p.RequestedAt.UTC().Format(time.RFC3339),
		ApprovedAt:      formatTimePtr(p.ApprovedAt),
		ProcessedAt:     formatTimePtr(p.ProcessedAt),
		CompletedAt:     formatTimePtr(p.CompletedAt),
		AttemptCount:    p.AttemptCount,
		MaxAttempts:     p.MaxAttempts,
		LastError:       p.LastError,
		ErrorRetryable:  p.ErrorRetryable,
		NextRetryAt:     formatTimePtr(p.NextRetryAt),
		ExternalTxnID:   p.ExternalTxnID,
		Fee:             p.Fee,
		NetAmount:       p.NetAmount,
		Notes:           p.Notes,
		RejectionReason: p.RejectionReason,
		DaysPending:     p.DaysPending(time.Now()),
	}
}

// NewMethodResponses maps the method policy table to its API view,
// sorted by method name for stable output.
func NewMethodResponses(methods map[domain.PayoutMethod]domain.MethodConfig) []MethodResponse {
	resp := make([]MethodResponse, 0, len(methods))
	for _, cfg := range methods {
		resp = append(resp, MethodResponse{
			Method:         string(cfg.Method),
			DisplayName:    cfg.DisplayName,
			FeeModel:       string(cfg.FeeModel),
			FeeAmount:      cfg.FeeAmount,
			FeeBps:         cfg.FeeBps,
			MinAmount:      cfg.MinAmount,
			ProcessingTime: cfg.ProcessingTime,
		})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Method < resp[j].Method })
	return resp
}

// NewBalanceResponse maps a domain balance to its API view.
func NewBalanceResponse(b *domain.UserBalance) BalanceResponse {
	return BalanceResponse{
		UserID:    b.UserID.String(),
		Available: b.Available,
		Reserved:  b.Reserved,
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewLedgerEntryResponse maps a domain ledger entry to its API view.
func NewLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:            e.ID.String(),
		Kind:          string(e.Kind),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.PayoutID != nil {
		s := e.PayoutID.String()
		resp.PayoutID = &s
	}
	return resp
}

// NewStatsResponse maps aggregated payout stats to the API view.
func NewStatsResponse(s *ports.PayoutStats) StatsResponse {
	return StatsResponse{
		TotalRequests:  s.TotalRequests,
		Completed:      s.Completed,
		Failed:         s.Failed,
		Rejected:       s.Rejected,
		InFlight:       s.InFlight,
		TotalRequested: s.TotalRequested,
		TotalPaidOut:   s.TotalPaidOut,
		TotalFees:      s.TotalFees,
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
