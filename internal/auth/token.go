// Package auth issues and verifies the access tokens a session presents when
// it connects to the multiplayer server.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
)

const issuer = "scenyx"

// DefaultTokenTTL is the lifetime of an issued access token.
const DefaultTokenTTL = time.Hour

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token expired")
)

// Claims holds access token claims.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenProvider signs short-lived tokens for one user. A token is reused
// until it is close to expiry.
type TokenProvider struct {
	userID string
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewTokenProvider returns a provider for userID signing with secret.
func NewTokenProvider(userID, secret string, ttl time.Duration, clock clockwork.Clock) *TokenProvider {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenProvider{userID: userID, secret: []byte(secret), ttl: ttl, clock: clock}
}

func (p *TokenProvider) ID() string { return p.userID }

// Token returns a valid access token, signing a new one when the cached token
// has less than a tenth of its lifetime left.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.cached != "" && now.Before(p.expires.Add(-p.ttl/10)) {
		return p.cached, nil
	}

	expires := now.Add(p.ttl)
	claims := &Claims{
		UserID: p.userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	p.cached, p.expires = signed, expires
	return signed, nil
}

// Verifier validates access tokens presented to the server.
type Verifier struct {
	secret []byte
	clock  clockwork.Clock
	parser *jwt.Parser
}

func NewVerifier(secret string, clock clockwork.Clock) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{
		secret: []byte(secret),
		clock:  clock,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation()),
	}
}

// Verify checks the signature and expiry of token and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !claims.VerifyExpiresAt(v.clock.Now(), true) {
		return nil, ErrTokenExpired
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims, nil
}
