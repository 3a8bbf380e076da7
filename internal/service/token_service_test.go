package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(secret string, ttl time.Duration) *JWTTokenService {
	return NewJWTTokenService(secret, ttl, "payout-engine-test")
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newTokenService("round-trip-secret", 24*time.Hour)
	adminID := uuid.New()

	tokenStr, expiresAt, err := svc.Generate(adminID, "ops-admin")
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, adminID, claims.AdminID)
	assert.Equal(t, "ops-admin", claims.Username)
}

func TestTokenRejection(t *testing.T) {
	svc := newTokenService("primary-secret", 24*time.Hour)

	expired, _, err := newTokenService("primary-secret", -time.Hour).Generate(uuid.New(), "ops-admin")
	require.NoError(t, err)

	foreign, _, err := newTokenService("other-secret", 24*time.Hour).Generate(uuid.New(), "ops-admin")
	require.NoError(t, err)

	cases := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"signed with a different secret", foreign},
		{"garbage", "not.a.valid.jwt"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Validate(tc.token)
			assert.Error(t, err)
		})
	}
}
