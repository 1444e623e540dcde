package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. The client holds no key material; expiry is only a local
// pre-check, the backend remains the authority on token validity.
func tokenExpiry(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, fmt.Errorf("token cannot be decoded: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("token has no usable exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}
