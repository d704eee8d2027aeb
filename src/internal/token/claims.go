package token

import (
	"time"

	"storefront-session-svc/src/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the payload the storefront backend puts in its access tokens.
type Claims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// Parse decodes the token payload without verifying the signature. The client
// never holds the signing key; the backend stays the authority on validity.
func Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, models.ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, models.ErrInvalidToken
	}

	return claims, nil
}

// ExpiresIn returns the seconds left until the token's exp claim, or fallback
// when the token carries no readable exp. An exp in the past yields 0.
func ExpiresIn(raw string, now time.Time, fallback int64) int64 {
	claims, err := Parse(raw)
	if err != nil || claims.ExpiresAt == nil {
		return fallback
	}

	remaining := int64(claims.ExpiresAt.Time.Sub(now) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SessionID returns the sessionId claim, or "" for opaque tokens.
func SessionID(raw string) string {
	claims, err := Parse(raw)
	if err != nil {
		return ""
	}
	return claims.SessionID
}
