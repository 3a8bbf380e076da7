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

func newTestAdmin() *domain.Admin {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Admin{
		ID:           uuid.New(),
		Username:     "ops-alice",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Status:       domain.AdminStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func adminRow(a *domain.Admin) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "username", "password_hash", "status", "created_at", "updated_at"}).
		AddRow(a.ID, a.Username, a.PasswordHash, a.Status, a.CreatedAt, a.UpdatedAt)
}

func TestAdminRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAdminRepo(mock)
	a := newTestAdmin()

	mock.ExpectExec("INSERT INTO admins").
		WithArgs(a.ID, a.Username, a.PasswordHash, a.Status, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAdminRepo(mock)
	a := newTestAdmin()

	mock.ExpectQuery("SELECT .+ FROM admins WHERE id").
		WithArgs(a.ID).
		WillReturnRows(adminRow(a))

	result, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.Username, result.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepo_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAdminRepo(mock)
	a := newTestAdmin()

	mock.ExpectQuery("SELECT .+ FROM admins WHERE username").
		WithArgs(a.Username).
		WillReturnRows(adminRow(a))

	result, err := repo.GetByUsername(context.Background(), a.Username)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.True(t, result.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminRepo_GetByUsername_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAdminRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM admins WHERE username").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "status", "created_at", "updated_at"}))

	result, err := repo.GetByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
