package httpx

import (
	"context"

	"github.com/soundlab/soundlab/pkg/jwtx"
)

type ctxKey string

const (
	// CtxKeyClaims holds the validated *jwtx.Claims for protected routes.
	CtxKeyClaims ctxKey = "claims"
	// CtxKeyRateIdentity holds the identity string the rate limiter keyed on.
	CtxKeyRateIdentity ctxKey = "rate_identity"
)

func contextWithClaims(ctx context.Context, c *jwtx.Claims) context.Context {
	return context.WithValue(ctx, CtxKeyClaims, c)
}

// ClaimsFromContext returns the validated claims, or nil on unprotected
// routes and rejected requests.
func ClaimsFromContext(ctx context.Context) *jwtx.Claims {
	c, _ := ctx.Value(CtxKeyClaims).(*jwtx.Claims)
	return c
}

func contextWithRateIdentity(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxKeyRateIdentity, id)
}

// RateIdentityFromContext returns the identity the rate limiter used for
// this request: a token fingerprint for authenticated callers, the client
// address otherwise.
func RateIdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyRateIdentity).(string)
	return id
}
