package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters for operator passwords.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Argon2HashService implements ports.HashService with Argon2id and the
// standard $argon2id$v=..$m=..,t=..,p=..$salt$hash encoding, so hashes
// remain verifiable after cost parameters change.
type Argon2HashService struct{}

// NewArgon2HashService creates the hash service.
func NewArgon2HashService() *Argon2HashService {
	return &Argon2HashService{}
}

// Hash derives an Argon2id hash of password under a fresh random salt.
func (s *Argon2HashService) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify reports whether password matches encoded, re-deriving with the
// parameters stored in the hash itself. Comparison is constant-time.
func (s *Argon2HashService) Verify(password string, encoded string) (bool, error) {
	salt, key, costs, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}

	derived := argon2.IDKey([]byte(password), salt, costs.time, costs.memory, costs.threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, derived) == 1, nil
}

type argonCosts struct {
	memory  uint32
	time    uint32
	threads uint8
}

func parseArgon2(encoded string) (salt, key []byte, costs argonCosts, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, costs, fmt.Errorf("malformed argon2 hash: %d segments", len(parts))
	}
	if parts[1] != "argon2id" {
		return nil, nil, costs, fmt.Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, costs, fmt.Errorf("parsing argon2 version: %w", err)
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &costs.memory, &costs.time, &costs.threads); err != nil {
		return nil, nil, costs, fmt.Errorf("parsing argon2 costs: %w", err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, costs, fmt.Errorf("decoding salt: %w", err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, costs, fmt.Errorf("decoding key: %w", err)
	}
	return salt, key, costs, nil
}
