package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the signed-in identity.
type Session struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Session returns the identity carried by the claims.
func (c *Claims) Session() *Session {
	return &Session{UID: c.UserID, Email: c.Email}
}

// ErrRevoked reports a credential issued before its owner logged out.
var ErrRevoked = errors.New("session revoked")

// Revocations reports the logout cut-off of a user. A zero time means no
// credential of uid has been revoked.
type Revocations interface {
	SessionsValidAfter(ctx context.Context, uid string) (time.Time, error)
}

// Tokens issues and verifies the HS256 session credentials.
type Tokens struct {
	secret      []byte
	ttl         time.Duration
	now         func() time.Time
	revocations Revocations
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour // 7 days
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

// WithRevocations makes Verify reject credentials revoked by logout.
func (t *Tokens) WithRevocations(r Revocations) *Tokens {
	t.revocations = r
	return t
}

func (t *Tokens) Issue(s Session) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: s.UID,
		Email:  s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies signature and expiry.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Verify parses tokenString and checks it against the owner's last logout.
func (t *Tokens) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := t.Parse(tokenString)
	if err != nil || t.revocations == nil {
		return claims, err
	}
	validAfter, err := t.revocations.SessionsValidAfter(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if validAfter.IsZero() {
		return claims, nil
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Time.Before(validAfter) {
		return nil, ErrRevoked
	}
	return claims, nil
}
