package processor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// commonErrors are the failure messages the mock samples from.
var commonErrors = []string{
	"Insufficient funds in connected account",
	"Invalid bank account details",
	"Account temporarily restricted",
	"Daily transfer limit exceeded",
	"Recipient account not found",
	"Currency conversion failed",
	"Network timeout during processing",
	"Fraud protection triggered",
}

// retryableErrors is the subset of commonErrors worth retrying.
var retryableErrors = map[string]bool{
	"Network timeout during processing": true,
	"Daily transfer limit exceeded":     true,
	"Currency conversion failed":        true,
}

const txnSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Mock simulates an external payment rail: per-method success rates,
// fee schedules, realistic latency and a fixed error catalog. Safe for
// concurrent use by multiple workers.
type Mock struct {
	cfg             domain.MethodConfig
	simulateLatency bool
	log             zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMock creates a mock processor for the given method policy. The
// seed makes outcome sequences reproducible in tests; pass time-based
// seeds in production wiring.
func NewMock(cfg domain.MethodConfig, seed int64, simulateLatency bool, log zerolog.Logger) *Mock {
	return &Mock{
		cfg:             cfg,
		simulateLatency: simulateLatency,
		log:             log,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// Method returns the payout method this processor serves.
func (m *Mock) Method() domain.PayoutMethod {
	return m.cfg.Method
}

// Attempt simulates one disbursement attempt. Latency respects ctx:
// cancellation or deadline expiry returns ctx.Err() mid-delay.
func (m *Mock) Attempt(ctx context.Context, req ports.AttemptRequest) (ports.AttemptOutcome, error) {
	m.log.Debug().
		Str("payout_id", req.PayoutID.String()).
		Str("method", string(req.Method)).
		Int("attempt", req.Attempt).
		Msg("mock processor attempt started")

	if m.simulateLatency {
		if err := m.sleep(ctx); err != nil {
			return ports.AttemptOutcome{}, err
		}
	}

	if m.roll() < m.cfg.SuccessRate {
		txnID := m.transactionID()
		m.log.Info().
			Str("payout_id", req.PayoutID.String()).
			Str("external_txn_id", txnID).
			Msg("mock payout succeeded")
		return ports.AttemptOutcome{
			Success:       true,
			ExternalTxnID: txnID,
			Fee:           m.cfg.Fee(req.Amount),
		}, nil
	}

	msg := m.pickError()
	m.log.Warn().
		Str("payout_id", req.PayoutID.String()).
		Str("error", msg).
		Bool("retryable", retryableErrors[msg]).
		Msg("mock payout failed")

	return ports.AttemptOutcome{
		Success:      false,
		ErrorMessage: msg,
		Retryable:    retryableErrors[msg],
	}, nil
}

// sleep waits a uniform random duration in [MinLatency, MaxLatency].
func (m *Mock) sleep(ctx context.Context) error {
	span := m.cfg.MaxLatency - m.cfg.MinLatency
	d := m.cfg.MinLatency
	if span > 0 {
		m.mu.Lock()
		d += time.Duration(m.rng.Int63n(int64(span)))
		m.mu.Unlock()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Mock) roll() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func (m *Mock) pickError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return commonErrors[m.rng.Intn(len(commonErrors))]
}

// transactionID generates a processor-shaped external reference.
func (m *Mock) transactionID() string {
	ts := time.Now().UTC().Format("20060102150405")
	suffix := m.randomSuffix(8)

	switch m.cfg.Method {
	case domain.MethodStripeBank:
		return fmt.Sprintf("po_%s_%s", ts, suffix)
	case domain.MethodPayPal:
		return fmt.Sprintf("PAY-%s-%s", suffix, ts)
	case domain.MethodCheck:
		return fmt.Sprintf("CHK%s%s", ts, suffix[:4])
	default:
		return fmt.Sprintf("TXN_%s_%s", ts, suffix)
	}
}

func (m *Mock) randomSuffix(n int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(txnSuffixAlphabet[m.rng.Intn(len(txnSuffixAlphabet))])
	}
	return b.String()
}

// NewDefaultMocks builds one mock per built-in method policy.
func NewDefaultMocks(simulateLatency bool, log zerolog.Logger) []ports.Processor {
	methods := domain.DefaultMethods()
	procs := make([]ports.Processor, 0, len(methods))
	for _, cfg := range methods {
		procs = append(procs, NewMock(cfg, time.Now().UnixNano(), simulateLatency, log))
	}
	return procs
}
