package postgres

import (
	"context"
	"testing"
	"time"

	"payout-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBalance(userID uuid.UUID) *domain.UserBalance {
	return &domain.UserBalance{
		UserID:    userID,
		Available: 150_00,
		Reserved:  25_00,
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func balanceRow(b *domain.UserBalance) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"user_id", "available", "reserved", "updated_at"}).
		AddRow(b.UserID, b.Available, b.Reserved, b.UpdatedAt)
}

func TestBalanceRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	b := newTestBalance(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_balances").
		WithArgs(b.UserID, b.Available, b.Reserved, b.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, b)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_GetByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	b := newTestBalance(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM user_balances WHERE user_id").
		WithArgs(b.UserID).
		WillReturnRows(balanceRow(b))

	result, err := repo.GetByUserID(context.Background(), b.UserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, b.Available, result.Available)
	assert.Equal(t, b.Reserved, result.Reserved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_GetByUserID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM user_balances WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "available", "reserved", "updated_at"}))

	result, err := repo.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	b := newTestBalance(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM user_balances WHERE user_id .+ FOR UPDATE").
		WithArgs(b.UserID).
		WillReturnRows(balanceRow(b))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetForUpdate(context.Background(), tx, b.UserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, b.Available, result.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_UpdateAmounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_balances SET available").
		WithArgs(int64(100_00), int64(50_00), userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateAmounts(context.Background(), tx, userID, 100_00, 50_00)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_UpdateAmounts_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_balances SET available").
		WithArgs(int64(100_00), int64(0), userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateAmounts(context.Background(), tx, userID, 100_00, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "balance not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
