package handler

import (
	"context"
	"strconv"

	"payout-engine/internal/adapter/http/dto"
	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
	"payout-engine/pkg/apperror"
	"payout-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PayoutHandler handles payout lifecycle endpoints.
type PayoutHandler struct {
	payoutSvc ports.PayoutService
	batchSvc  ports.BatchService
	methods   map[domain.PayoutMethod]domain.MethodConfig
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payoutSvc ports.PayoutService, batchSvc ports.BatchService, methods map[domain.PayoutMethod]domain.MethodConfig) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc, batchSvc: batchSvc, methods: methods}
}

// Create handles POST /api/v1/payouts.
func (h *PayoutHandler) Create(c *gin.Context) {
	var req dto.CreatePayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("user_id must be a valid UUID"))
		return
	}

	payout, err := h.payoutSvc.Create(c.Request.Context(), ports.CreatePayoutRequest{
		UserID:   userID,
		Amount:   req.Amount,
		Method:   domain.PayoutMethod(req.Method),
		Priority: domain.PayoutPriority(req.Priority),
		Notes:    req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewPayoutResponse(payout))
}

// Get handles GET /api/v1/payouts/:id.
func (h *PayoutHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	payout, err := h.payoutSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutResponse(payout))
}

// Approve handles POST /api/v1/payouts/:id/approve.
func (h *PayoutHandler) Approve(c *gin.Context) {
	h.transition(c, h.payoutSvc.Approve)
}

// Process handles POST /api/v1/payouts/:id/process.
func (h *PayoutHandler) Process(c *gin.Context) {
	h.transition(c, h.payoutSvc.Process)
}

// Retry handles POST /api/v1/payouts/:id/retry.
func (h *PayoutHandler) Retry(c *gin.Context) {
	h.transition(c, h.payoutSvc.Retry)
}

// Reject handles POST /api/v1/payouts/:id/reject.
func (h *PayoutHandler) Reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.RejectPayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	payout, err := h.payoutSvc.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutResponse(payout))
}

// List handles GET /api/v1/payouts.
func (h *PayoutHandler) List(c *gin.Context) {
	params, err := parseListParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items, total, err := h.payoutSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.PayoutListResponse{
		Items:    make([]dto.PayoutResponse, 0, len(items)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i := range items {
		resp.Items = append(resp.Items, dto.NewPayoutResponse(&items[i]))
	}
	if params.PageSize > 0 {
		resp.TotalPages = int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	}

	response.OK(c, resp)
}

// Stats handles GET /api/v1/payouts/stats.
func (h *PayoutHandler) Stats(c *gin.Context) {
	var periodStart *int64
	if raw := c.Query("period_start"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, apperror.Validation("period_start must be a unix timestamp"))
			return
		}
		periodStart = &ts
	}

	stats, err := h.payoutSvc.Stats(c.Request.Context(), periodStart)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewStatsResponse(stats))
}

// Methods handles GET /api/v1/payouts/methods.
func (h *PayoutHandler) Methods(c *gin.Context) {
	response.OK(c, dto.NewMethodResponses(h.methods))
}

// Batch handles POST /api/v1/payouts/batch.
func (h *PayoutHandler) Batch(c *gin.Context) {
	var req dto.BatchRequest
	if !bindJSON(c, &req) {
		return
	}

	ids := make([]uuid.UUID, 0, len(req.PayoutIDs))
	for _, raw := range req.PayoutIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("payout_ids must be valid UUIDs"))
			return
		}
		ids = append(ids, id)
	}

	result, err := h.batchSvc.Run(c.Request.Context(), ids, ports.BatchAction(req.Action))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// transition runs one single-argument lifecycle transition keyed by the
// path id.
func (h *PayoutHandler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	payout, err := fn(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPayoutResponse(payout))
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func parseListParams(c *gin.Context) (ports.PayoutListParams, error) {
	params := ports.PayoutListParams{Page: 1, PageSize: 50}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return params, apperror.Validation("page must be a positive integer")
		}
		params.Page = n
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return params, apperror.Validation("page_size must be a positive integer")
		}
		params.PageSize = n
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, apperror.Validation("user_id must be a valid UUID")
		}
		params.UserID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.PayoutStatus(raw)
		params.Status = &status
	}
	if raw := c.Query("method"); raw != "" {
		method := domain.PayoutMethod(raw)
		params.Method = &method
	}
	if raw := c.Query("from"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, apperror.Validation("from must be a unix timestamp")
		}
		params.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, apperror.Validation("to must be a unix timestamp")
		}
		params.To = &ts
	}

	return params, nil
}
