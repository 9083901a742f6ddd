// Package csrf issues and checks anti-forgery tokens for cookie-authenticated
// state-changing requests. Bearer-token requests are exempt.
package csrf

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"authguard/internal/security"
)

// TokenBytes is the number of random bytes in a CSRF token.
const TokenBytes = 32

// DefaultTTL bounds how long a bound token is kept; it matches the session lifetime.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrTokenMissing is returned when no token was presented or none is bound to the session.
	ErrTokenMissing = errors.New("csrf: token missing")
	// ErrTokenInvalid is returned when the presented token does not match the bound one.
	ErrTokenInvalid = errors.New("csrf: token invalid")
)

// Store binds one token to a session key.
type Store interface {
	Put(ctx context.Context, sessionKey, token string, ttl time.Duration) error
	// Get returns the bound token, or ok false if none is bound or it expired.
	Get(ctx context.Context, sessionKey string) (token string, ok bool, err error)
	Delete(ctx context.Context, sessionKey string) error
}

// NewToken returns a fresh hex-encoded random token.
func NewToken() (string, error) {
	return security.GenerateOpaqueToken(TokenBytes)
}

// Validate reports whether presented exactly matches bound. Empty values never match.
func Validate(presented, bound string) bool {
	if presented == "" || bound == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(bound)) == 1
}

// Guard issues tokens into a Store and checks presented tokens against it.
type Guard struct {
	store Store
	ttl   time.Duration
}

// NewGuard returns a Guard over store. ttl <= 0 uses DefaultTTL.
func NewGuard(store Store, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{store: store, ttl: ttl}
}

// Issue creates a token and binds it to sessionKey, replacing any previous one.
func (g *Guard) Issue(ctx context.Context, sessionKey string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	if err := g.store.Put(ctx, sessionKey, token, g.ttl); err != nil {
		return "", fmt.Errorf("csrf: bind token: %w", err)
	}
	return token, nil
}

// Check returns nil when presented matches the token bound to sessionKey.
func (g *Guard) Check(ctx context.Context, sessionKey, presented string) error {
	if presented == "" {
		return ErrTokenMissing
	}
	bound, ok, err := g.store.Get(ctx, sessionKey)
	if err != nil {
		return fmt.Errorf("csrf: load token: %w", err)
	}
	if !ok {
		return ErrTokenMissing
	}
	if !Validate(presented, bound) {
		return ErrTokenInvalid
	}
	return nil
}

// Revoke drops the token bound to sessionKey, e.g. on logout.
func (g *Guard) Revoke(ctx context.Context, sessionKey string) error {
	return g.store.Delete(ctx, sessionKey)
}
