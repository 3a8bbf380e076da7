package processor

import (
	"context"
	"strings"
	"testing"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMock(t *testing.T, method domain.PayoutMethod, seed int64) *Mock {
	t.Helper()
	cfg, ok := domain.DefaultMethods()[method]
	require.True(t, ok)
	return NewMock(cfg, seed, false, zerolog.Nop())
}

func attemptReq(method domain.PayoutMethod, amount int64) ports.AttemptRequest {
	return ports.AttemptRequest{
		PayoutID: uuid.New(),
		UserID:   uuid.New(),
		Amount:   amount,
		Method:   method,
		Attempt:  1,
	}
}

func TestMock_SuccessOutcome(t *testing.T) {
	m := newTestMock(t, domain.MethodPayPal, 1)
	ctx := context.Background()

	// Run until a success lands; seeded rng keeps this deterministic.
	for i := 0; i < 50; i++ {
		outcome, err := m.Attempt(ctx, attemptReq(domain.MethodPayPal, 10000))
		require.NoError(t, err)
		if !outcome.Success {
			continue
		}
		assert.True(t, strings.HasPrefix(outcome.ExternalTxnID, "PAY-"), "got %s", outcome.ExternalTxnID)
		// PayPal: 2% of 10000 cents.
		assert.Equal(t, int64(200), outcome.Fee)
		return
	}
	t.Fatal("no success in 50 attempts at 90% success rate")
}

func TestMock_FailureOutcome(t *testing.T) {
	m := newTestMock(t, domain.MethodOther, 42)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		outcome, err := m.Attempt(ctx, attemptReq(domain.MethodOther, 5000))
		require.NoError(t, err)
		if outcome.Success {
			continue
		}
		assert.Contains(t, commonErrors, outcome.ErrorMessage)
		assert.Equal(t, retryableErrors[outcome.ErrorMessage], outcome.Retryable)
		return
	}
	t.Fatal("no failure in 200 attempts at 85% success rate")
}

func TestMock_TransactionIDFormats(t *testing.T) {
	tests := []struct {
		method domain.PayoutMethod
		prefix string
	}{
		{domain.MethodStripeBank, "po_"},
		{domain.MethodPayPal, "PAY-"},
		{domain.MethodCheck, "CHK"},
		{domain.MethodOther, "TXN_"},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			m := newTestMock(t, tt.method, 7)
			id := m.transactionID()
			assert.True(t, strings.HasPrefix(id, tt.prefix), "id %q should start with %q", id, tt.prefix)
		})
	}
}

func TestMock_FeeSchedules(t *testing.T) {
	methods := domain.DefaultMethods()

	assert.Equal(t, int64(25), methods[domain.MethodStripeBank].Fee(10000))
	assert.Equal(t, int64(200), methods[domain.MethodPayPal].Fee(10000))
	assert.Equal(t, int64(500), methods[domain.MethodCheck].Fee(10000))
	assert.Equal(t, int64(100), methods[domain.MethodOther].Fee(10000))
}

func TestMock_LatencyHonorsContext(t *testing.T) {
	cfg := domain.MethodConfig{
		Method:      domain.MethodStripeBank,
		SuccessRate: 1.0,
		MinLatency:  time.Minute,
		MaxLatency:  2 * time.Minute,
	}
	m := NewMock(cfg, 1, true, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Attempt(ctx, attemptReq(domain.MethodStripeBank, 10000))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMock_SuccessRateRoughlyHolds(t *testing.T) {
	m := newTestMock(t, domain.MethodCheck, 99)
	ctx := context.Background()

	const n = 500
	successes := 0
	for i := 0; i < n; i++ {
		outcome, err := m.Attempt(ctx, attemptReq(domain.MethodCheck, 10000))
		require.NoError(t, err)
		if outcome.Success {
			successes++
		}
	}
	// 98% rate with generous tolerance for rng variance.
	rate := float64(successes) / n
	assert.Greater(t, rate, 0.90)
}

func TestRegistry_Resolve(t *testing.T) {
	procs := NewDefaultMocks(false, zerolog.Nop())
	r := NewRegistry(procs...)

	p, err := r.Resolve(domain.MethodPayPal)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPayPal, p.Method())

	_, err = r.Resolve("wire")
	assert.Error(t, err)
}
