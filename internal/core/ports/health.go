package ports

import "context"

// HealthChecker is one external dependency probed by the health
// endpoint.
type HealthChecker interface {
	// Ping verifies connectivity; nil means healthy.
	Ping(ctx context.Context) error
	// Name identifies the dependency in the health report.
	Name() string
}
