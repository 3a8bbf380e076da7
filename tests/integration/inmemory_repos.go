package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Balance Repo ---

type inMemoryBalanceRepo struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]*domain.UserBalance
}

func newInMemoryBalanceRepo() *inMemoryBalanceRepo {
	return &inMemoryBalanceRepo{balances: make(map[uuid.UUID]*domain.UserBalance)}
}

func (r *inMemoryBalanceRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.UserBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.balances[b.UserID] = &cp
	return nil
}

func (r *inMemoryBalanceRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserBalance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[userID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

// GetForUpdate relies on the serializing transactor for isolation: only
// one in-memory transaction runs at a time.
func (r *inMemoryBalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.UserBalance, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *inMemoryBalanceRepo) UpdateAmounts(ctx context.Context, tx pgx.Tx, userID uuid.UUID, available, reserved int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok {
		return fmt.Errorf("balance not found: %s", userID)
	}
	b.Available = available
	b.Reserved = reserved
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Payout Repo ---

type inMemoryPayoutRepo struct {
	mu      sync.RWMutex
	payouts map[uuid.UUID]*domain.PayoutRequest
}

func newInMemoryPayoutRepo() *inMemoryPayoutRepo {
	return &inMemoryPayoutRepo{payouts: make(map[uuid.UUID]*domain.PayoutRequest)}
}

func (r *inMemoryPayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payouts[p.ID] = &cp
	return nil
}

func (r *inMemoryPayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payouts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPayoutRepo) UpdateCAS(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest, expected domain.PayoutStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payouts[p.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	cp := *p
	r.payouts[p.ID] = &cp
	return true, nil
}

func (r *inMemoryPayoutRepo) List(ctx context.Context, params ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.PayoutRequest
	for _, p := range r.payouts {
		if params.UserID != nil && p.UserID != *params.UserID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.Method != nil && p.Method != *params.Method {
			continue
		}
		if params.From != nil && p.RequestedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && p.RequestedAt.Unix() > *params.To {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.PayoutRequest{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryPayoutRepo) ListRetryEligible(ctx context.Context, now time.Time, limit int) ([]domain.PayoutRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.PayoutRequest
	for _, p := range r.payouts {
		if !p.IsRetryEligible() {
			continue
		}
		if p.NextRetryAt == nil || p.NextRetryAt.After(now) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NextRetryAt.Before(*result[j].NextRetryAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryPayoutRepo) GetStats(ctx context.Context, periodStart *int64) (*ports.PayoutStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &ports.PayoutStats{}
	for _, p := range r.payouts {
		if periodStart != nil && p.RequestedAt.Unix() < *periodStart {
			continue
		}
		stats.TotalRequests++
		stats.TotalRequested += p.Amount
		switch p.Status {
		case domain.PayoutStatusCompleted:
			stats.Completed++
			stats.TotalPaidOut += p.NetAmount
			stats.TotalFees += p.Fee
		case domain.PayoutStatusRejected:
			stats.Rejected++
		case domain.PayoutStatusFailed:
			if p.IsRetryEligible() {
				stats.InFlight++
			} else {
				stats.Failed++
			}
		default:
			stats.InFlight++
		}
	}
	return stats, nil
}

// setNextRetryAt rewinds a stored payout's retry schedule, simulating
// the passage of time for sweep tests.
func (r *inMemoryPayoutRepo) setNextRetryAt(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payouts[id]; ok {
		p.NextRetryAt = &at
	}
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if r.entries[i].UserID == userID {
			result = append(result, r.entries[i])
		}
	}
	return result, nil
}

func (r *inMemoryLedgerRepo) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.PayoutID != nil && *e.PayoutID == payoutID {
			result = append(result, e)
		}
	}
	return result, nil
}

// --- In-Memory Admin Repo ---

type inMemoryAdminRepo struct {
	mu     sync.RWMutex
	admins map[uuid.UUID]*domain.Admin
}

func newInMemoryAdminRepo() *inMemoryAdminRepo {
	return &inMemoryAdminRepo{admins: make(map[uuid.UUID]*domain.Admin)}
}

func (r *inMemoryAdminRepo) Create(ctx context.Context, a *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.admins {
		if existing.Username == a.Username {
			return fmt.Errorf("username already exists")
		}
	}
	cp := *a
	r.admins[a.ID] = &cp
	return nil
}

func (r *inMemoryAdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.admins[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAdminRepo) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.admins {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transactions with a mutex, standing in
// for the row locks and atomic commits a real database provides. Only
// one in-memory transaction is in flight at a time.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	tx := &noopTx{}
	tx.release = func() { t.mu.Unlock() }
	return tx, nil
}

// noopTx is a pgx.Tx implementation whose only real behavior is
// releasing the transactor's lock exactly once.
type noopTx struct {
	release func()
	once    sync.Once
}

func (t *noopTx) done() {
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }

// --- Deterministic test processors ---

// stubProcessor returns a fixed outcome for every attempt.
type stubProcessor struct {
	method  domain.PayoutMethod
	outcome ports.AttemptOutcome
}

func (p *stubProcessor) Attempt(ctx context.Context, req ports.AttemptRequest) (ports.AttemptOutcome, error) {
	return p.outcome, nil
}

func (p *stubProcessor) Method() domain.PayoutMethod { return p.method }
