package handler

import (
	"strconv"

	"payout-engine/internal/adapter/http/dto"
	"payout-engine/internal/core/ports"
	"payout-engine/pkg/apperror"
	"payout-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BalanceHandler handles balance and ledger endpoints.
type BalanceHandler struct {
	ledger ports.Ledger
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(ledger ports.Ledger) *BalanceHandler {
	return &BalanceHandler{ledger: ledger}
}

// Credit handles POST /api/v1/balances/credit.
func (h *BalanceHandler) Credit(c *gin.Context) {
	var req dto.CreditRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("user_id must be a valid UUID"))
		return
	}

	balance, err := h.ledger.Credit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewBalanceResponse(balance))
}

// Get handles GET /api/v1/balances/:user_id.
func (h *BalanceHandler) Get(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, apperror.Validation("user_id must be a valid UUID"))
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewBalanceResponse(balance))
}

// Entries handles GET /api/v1/balances/:user_id/entries.
func (h *BalanceHandler) Entries(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, apperror.Validation("user_id must be a valid UUID"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.ledger.Entries(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, dto.NewLedgerEntryResponse(&entries[i]))
	}
	response.OK(c, resp)
}
