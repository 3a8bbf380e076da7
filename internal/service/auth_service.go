package service

import (
	"context"
	"fmt"
	"time"

	"payout-engine/internal/core/domain"
	"payout-engine/internal/core/ports"
	"payout-engine/pkg/apperror"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService for operator accounts.
type AuthServiceImpl struct {
	adminRepo ports.AdminRepository
	hashSvc   ports.HashService
	tokenSvc  ports.TokenService
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	adminRepo ports.AdminRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		adminRepo: adminRepo,
		hashSvc:   hashSvc,
		tokenSvc:  tokenSvc,
	}
}

// Register creates a new active admin account.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (*domain.Admin, error) {
	existing, err := s.adminRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	admin := &domain.Admin{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Status:       domain.AdminStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create admin: %w", err))
	}

	return admin, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find admin: %w", err))
	}
	if admin == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, admin.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	if !admin.IsActive() {
		return "", time.Time{}, apperror.ErrAdminSuspended()
	}

	token, expiry, err := s.tokenSvc.Generate(admin.ID, admin.Username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
