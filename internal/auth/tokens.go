package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/foursigma/foursigma/internal/domain/model"
)

const defaultIssuer = "foursigma"

// Claims are carried in every token. The subject is the user id.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// Tokens issues and parses bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) TokenOption {
	return func(t *Tokens) {
		if issuer != "" {
			t.issuer = issuer
		}
	}
}

// WithTokenClock overrides the time source.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *Tokens) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokens signs with secret; tokens expire after ttl.
func NewTokens(secret string, ttl time.Duration, opts ...TokenOption) *Tokens {
	t := &Tokens{secret: []byte(secret), ttl: ttl, issuer: defaultIssuer, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TTL returns the token lifetime.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for u and returns it with its expiry.
func (t *Tokens) Issue(u model.User) (string, time.Time, error) { //nolint:gocritic // hugeParam
	now := t.now()
	expires := now.Add(t.ttl)
	claims := &Claims{
		Email:    u.Email,
		Username: u.Username,
		Provider: u.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies signature, algorithm, issuer and expiry.
func (t *Tokens) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
