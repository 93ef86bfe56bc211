package repository

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/google/uuid"
)

// NewMagicToken mints an opaque bearer token: 32 random bytes, hex encoded.
// Only its hash is ever persisted.
func NewMagicToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken computes the irreversible SHA-256 hex digest of a plaintext token.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// NewSessionID returns a unique session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// GenerateReferralCode returns a short human-shareable code (two letters plus
// five digits, e.g. "GT48215").
func GenerateReferralCode() string {
	rng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	prefix := string(letters[rng.Intn(len(letters))]) + string(letters[rng.Intn(len(letters))])
	number := rng.Intn(90000) + 10000

	return fmt.Sprintf("%s%d", prefix, number)
}

// GenerateTempPassword returns a random plaintext password for provisioned
// accounts. The caller is expected to bcrypt it before storing.
func GenerateTempPassword() string {
	return uuid.NewString()
}
