package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"
)

// TokenPurpose names what an opaque token is for; each purpose has a fixed lifetime.
type TokenPurpose string

const (
	PurposeRefresh           TokenPurpose = "refresh"
	PurposePasswordReset     TokenPurpose = "password_reset"
	PurposeEmailVerification TokenPurpose = "email_verification"
)

// Lifetimes of opaque tokens by purpose.
const (
	RefreshTokenTTL           = 30 * 24 * time.Hour
	PasswordResetTokenTTL     = time.Hour
	EmailVerificationTokenTTL = 24 * time.Hour
)

var errTokenLength = errors.New("token length must be positive")

// OpaqueToken is a random hex value paired with its expiry.
type OpaqueToken struct {
	Value     string
	Purpose   TokenPurpose
	ExpiresAt time.Time
}

// GenerateOpaqueToken returns byteLength cryptographically secure random bytes, hex-encoded.
func GenerateOpaqueToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", errTokenLength
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewOpaqueToken generates a token for purpose that expires relative to now.
// Refresh tokens carry 64 random bytes, the others 32.
func NewOpaqueToken(purpose TokenPurpose, now time.Time) (OpaqueToken, error) {
	size, ttl := 32, PasswordResetTokenTTL
	switch purpose {
	case PurposeRefresh:
		size, ttl = 64, RefreshTokenTTL
	case PurposeEmailVerification:
		ttl = EmailVerificationTokenTTL
	}
	v, err := GenerateOpaqueToken(size)
	if err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{Value: v, Purpose: purpose, ExpiresAt: now.Add(ttl)}, nil
}

// HashOpaqueToken returns the hex SHA-256 of token. Only hashes are persisted.
func HashOpaqueToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// OpaqueTokenHashEqual compares the hash of providedToken with storedHash in constant time.
func OpaqueTokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashOpaqueToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
