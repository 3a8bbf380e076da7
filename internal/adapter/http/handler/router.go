package handler

import (
	"payout-engine/internal/adapter/http/middleware"
	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PayoutSvc      ports.PayoutService
	BatchSvc       ports.BatchService
	Ledger         ports.Ledger
	TokenSvc       ports.TokenService
	Methods        map[domain.PayoutMethod]domain.MethodConfig
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check verifies PostgreSQL and Redis, not just liveness
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// --- JWT-authenticated routes (operator API) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	methods := deps.Methods
	if methods == nil {
		methods = domain.DefaultMethods()
	}
	payoutHandler := NewPayoutHandler(deps.PayoutSvc, deps.BatchSvc, methods)
	balanceHandler := NewBalanceHandler(deps.Ledger)

	payouts := v1.Group("/payouts", jwtAuth)
	{
		payouts.POST("", payoutHandler.Create)
		payouts.GET("", payoutHandler.List)
		payouts.GET("/methods", payoutHandler.Methods)
		payouts.GET("/stats", payoutHandler.Stats)
		payouts.POST("/batch", payoutHandler.Batch)
		payouts.GET("/:id", payoutHandler.Get)
		payouts.POST("/:id/approve", payoutHandler.Approve)
		payouts.POST("/:id/reject", payoutHandler.Reject)
		payouts.POST("/:id/process", payoutHandler.Process)
		payouts.POST("/:id/retry", payoutHandler.Retry)
	}

	balances := v1.Group("/balances", jwtAuth)
	{
		balances.POST("/credit", balanceHandler.Credit)
		balances.GET("/:user_id", balanceHandler.Get)
		balances.GET("/:user_id/entries", balanceHandler.Entries)
	}

	return r
}
