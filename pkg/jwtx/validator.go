package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newParser builds a parser pinned to a single algorithm with the validator's
// audience, leeway and clock. Pinning the method defeats alg-substitution
// tricks; the clock is injected so expiry semantics are testable.
func newParser(alg string, o Options, now time.Time) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithAudience(o.Audience),
		jwt.WithLeeway(o.Leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
}

// translateParseError is the single boundary where golang-jwt errors become
// the package taxonomy. Anything unrecognised counts as an unverifiable
// token rather than leaking library details upward.
func translateParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrInvalidAudience
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenExpired
	default:
		return ErrInvalidSignature
	}
}

// finish runs the checks shared by every algorithm once the signature and
// registered claims have been verified: temporal claim presence, issued
// lifetime, and single-use nonce consumption. The replay cache is only
// touched after every other check has passed, so a rejected token never
// burns its nonce.
func finish(c *Claims, o Options, replay *ReplayCache) (*Claims, error) {
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return nil, ErrMissingTemporalClaim
	}

	if age := c.Age(); age > o.MaxAge {
		return nil, fmt.Errorf("%w: lifetime %ds exceeds max %ds",
			ErrTokenLifetimeExceeded, int(age.Seconds()), int(o.MaxAge.Seconds()))
	}

	nonce := c.ReplayID()
	if nonce == "" {
		return nil, ErrMissingNonce
	}

	if !replay.CheckAndRemember(nonce) {
		// The one rejection worth logging: a duplicate nonce is an attack
		// signal, not routine client error.
		o.Logger.Warn("token replay detected", "sub", c.Subject, "jti", nonce)
		return nil, ErrReplayDetected
	}

	return c, nil
}
