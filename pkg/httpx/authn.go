package httpx

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soundlab/soundlab/pkg/jwtx"
)

// Authn is the token-validation stage for protected routes. It consumes the
// bearer token through the validator (burning the token's nonce on success)
// and exposes the claims to downstream handlers via the request context.
func Authn(v jwtx.Validator, now func() time.Time, audit AuditFunc) Middleware {
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Validate(raw, now())
			if err != nil {
				if errors.Is(err, jwtx.ErrReplayDetected) && audit != nil {
					audit(ctx, "replay_detected", "token replay detected",
						RateIdentityFromContext(ctx), r.URL.Path)
				}
				writeBearerError(w, rejectionDetail(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithClaims(ctx, claims)))
		})
	}
}

// rejectionDetail maps the validator taxonomy to client-facing detail
// strings. Details stay deliberately terse; the why lives in server logs.
func rejectionDetail(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwtx.ErrInvalidAudience):
		return "invalid audience"
	case errors.Is(err, jwtx.ErrMissingTemporalClaim):
		return "token missing exp or iat"
	case errors.Is(err, jwtx.ErrTokenLifetimeExceeded):
		// Keep the measured values; clients need them to fix their issuer.
		return strings.TrimPrefix(err.Error(), "jwtx: ")
	case errors.Is(err, jwtx.ErrMissingNonce):
		return "token missing jti/nonce"
	case errors.Is(err, jwtx.ErrReplayDetected):
		return "token replay detected"
	default:
		return "invalid token"
	}
}

// writeBearerError pairs the RFC 6750 challenge header with the uniform
// rejection body.
func writeBearerError(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+detail+`"`)
	WriteDetail(w, http.StatusUnauthorized, detail)
}
