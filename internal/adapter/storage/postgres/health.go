package postgres

import (
	"context"
	"fmt"
)

// HealthCheck implements ports.HealthChecker for PostgreSQL. It runs a
// real round-trip query, so a saturated pool reports unhealthy instead
// of hiding behind a cached connection state.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping verifies PostgreSQL connectivity with a round-trip query.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Name returns the dependency name reported by the health endpoint.
func (h *HealthCheck) Name() string {
	return "postgresql"
}
