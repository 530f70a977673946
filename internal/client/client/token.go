package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// checkTokenExpiry fails with ErrUnauthenticated when token is a JWT whose
// exp claim is in the past. The signature is not verified; the server does
// that. Opaque tokens pass unchecked.
func checkTokenExpiry(token string, now time.Time) error {
	if token == "" {
		return fmt.Errorf("no access token: %w", ErrUnauthenticated)
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("access token expired at %s: %w", claims.ExpiresAt.Time.Format(time.RFC3339), ErrUnauthenticated)
	}
	return nil
}
