package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundlab/soundlab/pkg/httpx"
)

var fixedHeaders = map[string]string{
	"X-Content-Type-Options":       "nosniff",
	"X-Frame-Options":              "DENY",
	"Referrer-Policy":              "strict-origin-when-cross-origin",
	"Cross-Origin-Opener-Policy":   "same-origin",
	"Cross-Origin-Embedder-Policy": "require-corp",
	"Permissions-Policy":           httpx.DefaultPermissionsPolicy,
}

func TestSecurityHeaders(t *testing.T) {
	t.Run("sets the full set on success", func(t *testing.T) {
		h := httpx.SecurityHeaders(httpx.SecurityHeadersConfig{})(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		for name, want := range fixedHeaders {
			require.Equal(t, want, rec.Header().Get(name), name)
		}
		require.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
		require.Empty(t, rec.Header().Get("Server"))
	})

	t.Run("sets the full set on rejections too", func(t *testing.T) {
		h := httpx.SecurityHeaders(httpx.SecurityHeadersConfig{})(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				httpx.WriteDetail(w, http.StatusUnauthorized, "missing bearer token")
			}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		for name, want := range fixedHeaders {
			require.Equal(t, want, rec.Header().Get(name), name)
		}
	})

	t.Run("strips a Server header set by the handler", func(t *testing.T) {
		h := httpx.SecurityHeaders(httpx.SecurityHeadersConfig{})(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", "leaky/1.0")
				w.WriteHeader(http.StatusOK)
			}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Empty(t, rec.Header().Get("Server"))
	})

	t.Run("strips Server on implicit WriteHeader", func(t *testing.T) {
		h := httpx.SecurityHeaders(httpx.SecurityHeadersConfig{})(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", "leaky/1.0")
				_, _ = w.Write([]byte("ok"))
			}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Empty(t, rec.Header().Get("Server"))
		require.Equal(t, "ok", rec.Body.String())
	})

	t.Run("honours configured policies and HSTS", func(t *testing.T) {
		h := httpx.SecurityHeaders(httpx.SecurityHeadersConfig{
			PermissionsPolicy:     "camera=()",
			ContentSecurityPolicy: "default-src 'none'",
			EnableHSTS:            true,
		})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, "camera=()", rec.Header().Get("Permissions-Policy"))
		require.Equal(t, "default-src 'none'", rec.Header().Get("Content-Security-Policy"))
		require.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
	})
}
