package jwtx

import (
	"errors"
	"log/slog"
	"time"
)

// Validator verifies a bearer token and, on first use, consumes its nonce.
// Every rejection is one of the sentinel errors below so callers can map
// outcomes without knowing which JWT library sits underneath.
type Validator interface {
	Validate(token string, now time.Time) (*Claims, error)
}

// Options captures the expectations shared by all validator implementations.
type Options struct {
	// Audience the token must carry (claims.aud). Required.
	Audience string

	// Leeway allows small clock skew when validating exp/nbf.
	// Applied to expiry checks only, never to the exp-iat age computation.
	Leeway time.Duration

	// MaxAge bounds exp-iat. Tokens minted with a longer lifetime are
	// rejected even while still unexpired.
	MaxAge time.Duration

	// ReplayCacheSize bounds the nonce cache. Zero means DefaultReplayCacheSize.
	ReplayCacheSize int

	// Logger receives the replay warning. Defaults to slog.Default.
	Logger *slog.Logger
}

const (
	// DefaultLeeway tolerates ±60s of clock skew between issuer and server.
	DefaultLeeway = 60 * time.Second

	// DefaultMaxAge caps token lifetime at 15 minutes.
	DefaultMaxAge = 15 * time.Minute

	// DefaultReplayCacheSize bounds the nonce cache.
	DefaultReplayCacheSize = 10_000
)

// withDefaults fills zero fields so constructors stay short.
func (o Options) withDefaults() Options {
	if o.Leeway <= 0 {
		o.Leeway = DefaultLeeway
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.ReplayCacheSize <= 0 {
		o.ReplayCacheSize = DefaultReplayCacheSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Rejection taxonomy. The underlying library's errors are translated into
// these at a single boundary (see translateParseError); nothing outside this
// package ever observes a library error.
var (
	ErrInvalidSignature      = errors.New("jwtx: malformed or unverifiable token")
	ErrTokenExpired          = errors.New("jwtx: token expired")
	ErrInvalidAudience       = errors.New("jwtx: audience mismatch")
	ErrMissingTemporalClaim  = errors.New("jwtx: token missing exp or iat")
	ErrTokenLifetimeExceeded = errors.New("jwtx: token lifetime exceeds maximum")
	ErrMissingNonce          = errors.New("jwtx: token missing jti/nonce")
	ErrReplayDetected        = errors.New("jwtx: token replay detected")
)
