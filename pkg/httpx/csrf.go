package httpx

import (
	"crypto/subtle"
	"net/http"

	"github.com/soundlab/soundlab/pkg/cryptox"
)

// CSRF cookie/header defaults.
const (
	DefaultCSRFCookie = "csrf_token"
	DefaultCSRFHeader = "X-CSRF-Token"
)

// CSRFConfig configures double-submit verification.
type CSRFConfig struct {
	Enabled    bool
	CookieName string
	HeaderName string
}

// CSRFVerifier implements the double-submit cookie pattern: the client must
// echo the server-issued cookie value in a request header, which a
// cross-origin attacker cannot read.
type CSRFVerifier struct {
	cfg CSRFConfig
}

// NewCSRFVerifier builds a verifier, filling cookie and header names with
// the defaults when empty.
func NewCSRFVerifier(cfg CSRFConfig) *CSRFVerifier {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookie
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeader
	}
	return &CSRFVerifier{cfg: cfg}
}

// HeaderName returns the request header the client must echo the token in.
func (v *CSRFVerifier) HeaderName() string { return v.cfg.HeaderName }

// CookieName returns the cookie carrying the server-issued token.
func (v *CSRFVerifier) CookieName() string { return v.cfg.CookieName }

// Verify reports whether the double-submitted tokens check out. Safe
// methods pass without inspection; otherwise both values must be present
// and equal under a constant-time comparison.
func (v *CSRFVerifier) Verify(method, headerToken, cookieToken string) bool {
	if !v.cfg.Enabled {
		return true
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}

	if headerToken == "" || cookieToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) == 1
}

// Issue generates a fresh token and sets it as the double-submit cookie.
// The cookie is deliberately not HttpOnly: the client script must read it
// back to mirror it into the header.
func (v *CSRFVerifier) Issue(w http.ResponseWriter, secure bool) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     v.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// VerifyCSRF is the pipeline stage for state-changing methods: it pulls the
// header and cookie values off the request and rejects with 403 when the
// pair doesn't verify.
func VerifyCSRF(v *CSRFVerifier, audit AuditFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headerToken := r.Header.Get(v.cfg.HeaderName)

			var cookieToken string
			if c, err := r.Cookie(v.cfg.CookieName); err == nil {
				cookieToken = c.Value
			}

			if !v.Verify(r.Method, headerToken, cookieToken) {
				if audit != nil {
					audit(r.Context(), "csrf_mismatch", "missing or mismatched CSRF token",
						RateIdentityFromContext(r.Context()), r.URL.Path)
				}
				WriteDetail(w, http.StatusForbidden, "CSRF token missing or invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
