package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payout-engine/config"
	httpHandler "payout-engine/internal/adapter/http/handler"
	pgStorage "payout-engine/internal/adapter/storage/postgres"
	redisStorage "payout-engine/internal/adapter/storage/redis"
	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
	"payout-engine/internal/dispatch"
	"payout-engine/internal/processor"
	"payout-engine/internal/service"
	"payout-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Payout Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	balanceRepo := pgStorage.NewBalanceRepo(pool)
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	adminRepo := pgStorage.NewAdminRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Task queue (producer + consumer sides)
	taskQueue := redisStorage.NewTaskQueue(rdb, cfg.Payout.QueueKey)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(adminRepo, hashSvc, tokenSvc)

	// Mock processors for every supported method
	registry := processor.NewRegistry(processor.NewDefaultMocks(cfg.Payout.SimulateLatency, log)...)

	retryPolicy := service.RetryPolicy{
		MaxAttempts: cfg.Payout.MaxAttempts,
		Backoff:     cfg.Payout.RetryBackoff,
	}
	methods := domain.DefaultMethods()

	// Initialize business services
	ledgerSvc := service.NewLedgerService(balanceRepo, ledgerRepo, transactor, log)
	payoutSvc := service.NewPayoutService(
		payoutRepo,
		ledgerSvc,
		registry,
		taskQueue,
		transactor,
		methods,
		retryPolicy,
		log,
	)
	batchSvc := service.NewBatchService(payoutSvc, taskQueue, log)

	// Background workers and retry sweeper
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workerPool := dispatch.NewPool(taskQueue, payoutSvc, cfg.Payout.Workers, log)
	workerPool.Start(workerCtx)

	sweeper := dispatch.NewSweeper(taskQueue, cfg.Payout.SweepInterval, log)
	go sweeper.Run(workerCtx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		PayoutSvc:      payoutSvc,
		BatchSvc:       batchSvc,
		Ledger:         ledgerSvc,
		TokenSvc:       tokenSvc,
		Methods:        methods,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopWorkers()
	workerPool.Wait()

	log.Info().Msg("Server exited")
}
