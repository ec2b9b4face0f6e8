package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HS256Validator validates JWTs signed with a shared HMAC-SHA256 secret.
type HS256Validator struct {
	secret []byte
	opts   Options
	replay *ReplayCache
}

// NewValidatorHS256 creates a validator for HS256 tokens. The replay cache
// is owned by the validator and sized from opts.
func NewValidatorHS256(secret []byte, opts Options) *HS256Validator {
	o := opts.withDefaults()
	return &HS256Validator{
		secret: secret,
		opts:   o,
		replay: NewReplayCache(o.ReplayCacheSize),
	}
}

// Validate verifies signature, audience and lifetime at the given time and
// consumes the token's nonce. A nonce can be consumed exactly once; any
// later call with the same nonce fails with ErrReplayDetected even if the
// token is otherwise still valid.
func (v *HS256Validator) Validate(token string, now time.Time) (*Claims, error) {
	parser := newParser(jwt.SigningMethodHS256.Alg(), v.opts, now)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, translateParseError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}

	return finish(claims, v.opts, v.replay)
}
