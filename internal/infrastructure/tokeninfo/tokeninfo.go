// Package tokeninfo reads claims from bearer tokens without verifying them.
// The client never holds the signing key; it only needs to know when a
// token it already has is certain to be rejected.
package tokeninfo

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned for tokens that are not parseable JWTs
var ErrNotJWT = errors.New("token is not a JWT")

// Info holds the claims the client cares about
type Info struct {
	Subject   string
	ExpiresAt time.Time // zero when the token has no exp claim
}

// Inspect parses the token's claims without checking the signature
func Inspect(token string) (Info, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := Info{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the token carries an exp claim at or before now.
// Opaque tokens and tokens without exp are never reported expired.
func Expired(token string, now time.Time) bool {
	info, err := Inspect(token)
	if err != nil || info.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(info.ExpiresAt)
}

// TTL returns the remaining lifetime, or 0 when unknown or already expired
func TTL(token string, now time.Time) time.Duration {
	info, err := Inspect(token)
	if err != nil || info.ExpiresAt.IsZero() {
		return 0
	}
	if d := info.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
