// Package extrastoken handles the elevation credential format. The protocol
// treats the token as opaque, but in practice it is an HS256 JWT carrying the
// shift-session id, which lets the client drop a stale elevation before
// wasting a request on it.
package extrastoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// DefaultTTL matches the backend's elevation lifetime.
const DefaultTTL = 12 * time.Hour

type Claims struct {
	ShiftSessionID int64 `json:"rid"`
	jwt.RegisteredClaims
}

// Mint signs an elevation token for the given shift session.
func Mint(secret string, shiftSessionID int64, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("[Mint] secret is required")
	}
	if shiftSessionID <= 0 {
		return "", errors.New("[Mint] shift session id must be positive")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	claims := Claims{
		ShiftSessionID: shiftSessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Validate verifies the signature and expiry and returns the claims.
func Validate(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Validate] parse token")
	}
	if !parsed.Valid {
		return nil, errors.New("[Validate] token is not valid")
	}
	return claims, nil
}

// Expired reports whether the token carries an expiry in the past. Tokens
// that do not parse as JWTs report false: an opaque token is left for the
// server to judge.
func Expired(token string, now time.Time) bool {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(now)
}
