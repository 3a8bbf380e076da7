package handler

import (
	"net/http"

	"payout-engine/internal/adapter/http/dto"
	"payout-engine/internal/core/ports"
	"payout-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles admin authentication endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	admin, err := h.authSvc.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RegisterResponse{
		AdminID:  admin.ID.String(),
		Username: admin.Username,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

type depStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck handles GET /health, probing every registered dependency.
// A single unhealthy dependency turns the whole report degraded with a
// 503, so load balancers stop routing here.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]depStatus, len(checkers))
		httpCode, status := http.StatusOK, "healthy"

		for _, checker := range checkers {
			err := checker.Ping(c.Request.Context())
			if err == nil {
				deps[checker.Name()] = depStatus{Status: "healthy"}
				continue
			}
			deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
			httpCode, status = http.StatusServiceUnavailable, "degraded"
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
