package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims are the ID token fields evalo reads locally. The provider has
// already validated the token; the client only needs expiry and profile hints.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func parseClaims(raw string) (tokenClaims, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return tokenClaims{}, fmt.Errorf("parse id token: %w", err)
	}
	return claims, nil
}

func (c tokenClaims) expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

func (c tokenClaims) uid() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
