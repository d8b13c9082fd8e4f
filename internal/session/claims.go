package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the readable payload of a session token. The API signs its
// tokens as JWTs; the client never holds the key, so claims are decoded
// without verification and only used for display and expiry.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the token payload. ok is false when the token is not
// a JWT, which is allowed: opaque tokens are passed through untouched.
func ParseClaims(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Claims{}, false
	}
	return c, true
}

// IssuedAt returns the iat claim, or the zero time.
func (s Session) IssuedAt() time.Time {
	c, ok := ParseClaims(s.Token)
	if !ok || c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAt returns the exp claim, or the zero time when the token has
// none or is opaque.
func (s Session) ExpiresAt() time.Time {
	c, ok := ParseClaims(s.Token)
	if !ok || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether the token carries an expiry at or before now.
func (s Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}
