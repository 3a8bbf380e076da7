package postgres

import (
	"context"
	"errors"
	"fmt"

	"payout-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AdminRepo implements ports.AdminRepository.
type AdminRepo struct {
	pool Pool
}

// NewAdminRepo creates a new AdminRepo.
func NewAdminRepo(pool Pool) *AdminRepo {
	return &AdminRepo{pool: pool}
}

// Create inserts a new admin account.
func (r *AdminRepo) Create(ctx context.Context, admin *domain.Admin) error {
	query := `INSERT INTO admins (id, username, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		admin.ID, admin.Username, admin.PasswordHash, admin.Status,
		admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

// GetByID fetches an admin by its UUID.
func (r *AdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Admin, error) {
	query := `SELECT id, username, password_hash, status, created_at, updated_at
		FROM admins WHERE id = $1`

	return r.get(ctx, query, id)
}

// GetByUsername fetches an admin by username.
func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	query := `SELECT id, username, password_hash, status, created_at, updated_at
		FROM admins WHERE username = $1`

	return r.get(ctx, query, username)
}

func (r *AdminRepo) get(ctx context.Context, query string, arg any) (*domain.Admin, error) {
	a := &domain.Admin{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Username, &a.PasswordHash, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}
