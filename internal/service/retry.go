package service

import (
	"time"

	"payout-engine/internal/core/domain"
)

// RetryPolicy decides when a failed payout attempt may run again.
// Backoff holds one delay per completed attempt; attempt counts past the
// last tier reuse it.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// DefaultRetryPolicy returns the standard schedule: retry after 1 hour,
// then 24 hours, then 7 days, with at most 3 attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: domain.DefaultMaxAttempts,
		Backoff:     []time.Duration{time.Hour, 24 * time.Hour, 168 * time.Hour},
	}
}

// Delay returns the wait after the given completed attempt count.
func (r RetryPolicy) Delay(attemptCount int) time.Duration {
	if len(r.Backoff) == 0 {
		return time.Hour
	}
	idx := attemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.Backoff) {
		idx = len(r.Backoff) - 1
	}
	return r.Backoff[idx]
}

// NextRetryAt computes the earliest time the next attempt may run.
func (r RetryPolicy) NextRetryAt(attemptCount int, now time.Time) time.Time {
	return now.Add(r.Delay(attemptCount))
}

// Due reports whether the request's scheduled retry time has passed.
// A request without a schedule is considered due, so manual retries of
// eligible requests are never blocked on timing.
func (r RetryPolicy) Due(p *domain.PayoutRequest, now time.Time) bool {
	if p.NextRetryAt == nil {
		return true
	}
	return !now.Before(*p.NextRetryAt)
}

// attemptTimeouts maps priority to the per-attempt execution budget.
var attemptTimeouts = map[domain.PayoutPriority]time.Duration{
	domain.PriorityLow:    10 * time.Minute,
	domain.PriorityNormal: 5 * time.Minute,
	domain.PriorityHigh:   3 * time.Minute,
}

// AttemptTimeout returns the execution budget for one attempt at the
// given priority.
func AttemptTimeout(priority domain.PayoutPriority) time.Duration {
	if d, ok := attemptTimeouts[priority]; ok {
		return d
	}
	return attemptTimeouts[domain.PriorityNormal]
}
