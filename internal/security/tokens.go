package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token cannot be issued with the configured key.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the identity carried inside a signed session token. IssuedAt and
// ExpiresAt are filled by the provider and ignored on issue.
type Claims struct {
	SubjectID string
	Email     string
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// sessionClaims is the JWT wire form of Claims.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// TokenProvider issues and verifies session JWTs. It signs with RS256/ES256 when
// built from a key pair and with HS256 when built from a shared secret. Key
// material is never logged.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	now       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key
// (RS256 or ES256) and verifies with publicKey.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}, nil
}

// NewHMACTokenProvider returns a TokenProvider that signs and verifies with HS256.
func NewHMACTokenProvider(secret []byte, issuer, audience string) (*TokenProvider, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}, nil
}

// WithClock returns a copy of p that reads the current time from now. Used in tests.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	cp := *p
	cp.now = now
	return &cp
}

// Issue signs c with the provider's issuer and audience and an expiry ttl from now.
func (p *TokenProvider) Issue(c Claims, ttl time.Duration) (string, error) {
	jti, err := GenerateOpaqueToken(16)
	if err != nil {
		return "", err
	}
	now := p.now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   c.SubjectID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:     c.Email,
		Role:      c.Role,
		SessionID: c.SessionID,
	}
	t := jwt.NewWithClaims(p.method, claims)
	s, err := t.SignedString(p.signKey)
	if err != nil {
		return "", ErrInvalidToken
	}
	return s, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry in one step and
// returns the claims. It returns nil on any failure; callers cannot tell which
// check failed.
func (p *TokenProvider) Verify(token string) *Claims {
	if token == "" {
		return nil
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(p.now),
	)
	var sc sessionClaims
	parsed, err := parser.ParseWithClaims(token, &sc, func(*jwt.Token) (any, error) {
		return p.verifyKey, nil
	})
	if err != nil || !parsed.Valid || sc.Subject == "" {
		return nil
	}
	out := &Claims{
		SubjectID: sc.Subject,
		Email:     sc.Email,
		Role:      sc.Role,
		SessionID: sc.SessionID,
	}
	if sc.IssuedAt != nil {
		out.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		out.ExpiresAt = sc.ExpiresAt.Time
	}
	return out
}
