package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims the telemetry server cares about.
// Tokens are minted by an external issuer; we only ever parse them.
type Claims struct {
	jwt.RegisteredClaims

	// Nonce is an alternative replay identifier some issuers use instead
	// of the registered jti claim.
	Nonce string `json:"nonce,omitempty"`

	// Scopes the token grants, e.g. "telemetry:read telemetry:stream".
	Scopes []string `json:"scopes,omitempty"`
}

// ReplayID returns the replay identifier: jti, falling back to nonce.
// Empty means the token carries neither.
func (c *Claims) ReplayID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Nonce
}

// Age returns exp-iat, the lifetime the issuer granted the token.
// Both claims must be present; callers check that first.
func (c *Claims) Age() time.Duration {
	return c.ExpiresAt.Time.Sub(c.IssuedAt.Time)
}
