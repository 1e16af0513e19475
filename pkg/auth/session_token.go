package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the WebSocket bearer-token payload named in spec.md §9:
// "HMAC-signed JSON with user_id, login_name, exp, iat."
type SessionClaims struct {
	UserID    int64  `json:"user_id"`
	LoginName string `json:"login_name"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies WebSocket session tokens against a shared
// HMAC secret (spec.md §4.4's bearer token).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer signing with secret and defaulting new
// tokens to a 24h lifetime.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: 24 * time.Hour}
}

// Issue mints a signed session token for userID/loginName.
func (i *TokenIssuer) Issue(userID int64, loginName string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:    userID,
		LoginName: loginName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, checking signature and
// expiry, and returns its claims. Any equivalent signed-token scheme
// satisfies spec.md §9's contract; this is the HMAC-JWT realization of it.
func (i *TokenIssuer) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("session token invalid")
	}
	return claims, nil
}
