package jwtx

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Validator validates JWTs signed with an RSA-SHA256 key pair; the
// server only ever holds the public half.
type RS256Validator struct {
	pub    *rsa.PublicKey
	opts   Options
	replay *ReplayCache
}

// NewValidatorRS256 creates a validator for RS256 tokens. The replay cache
// is owned by the validator and sized from opts.
func NewValidatorRS256(pub *rsa.PublicKey, opts Options) *RS256Validator {
	o := opts.withDefaults()
	return &RS256Validator{
		pub:    pub,
		opts:   o,
		replay: NewReplayCache(o.ReplayCacheSize),
	}
}

// Validate verifies signature, audience and lifetime at the given time and
// consumes the token's nonce. Same single-use guarantee as the HS256
// validator; the two differ only in key material.
func (v *RS256Validator) Validate(token string, now time.Time) (*Claims, error) {
	parser := newParser(jwt.SigningMethodRS256.Alg(), v.opts, now)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.pub, nil
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
