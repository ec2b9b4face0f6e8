package httpx

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// Default header values applied by SecurityHeaders.
const (
	DefaultPermissionsPolicy = "camera=(), microphone=(), geolocation=(), payment=()"
	DefaultCSP               = "default-src 'self'; frame-ancestors 'none'"
	hstsValue                = "max-age=31536000; includeSubDomains"
)

// SecurityHeadersConfig configures the hardening header set. Zero values
// fall back to the defaults above; HSTS is only emitted when the server
// knows it is reached over TLS.
type SecurityHeadersConfig struct {
	PermissionsPolicy     string
	ContentSecurityPolicy string
	EnableHSTS            bool
}

// SecurityHeaders returns the first pipeline stage: it queues the fixed
// hardening header set before the wrapped handler runs, so the headers ride
// along on every response including rejections, and strips any Server
// header before the response is committed. This stage has no failure mode.
func SecurityHeaders(cfg SecurityHeadersConfig) Middleware {
	permissions := cfg.PermissionsPolicy
	if permissions == "" {
		permissions = DefaultPermissionsPolicy
	}
	csp := cfg.ContentSecurityPolicy
	if csp == "" {
		csp = DefaultCSP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Embedder-Policy", "require-corp")
			h.Set("Permissions-Policy", permissions)
			h.Set("Content-Security-Policy", csp)
			if cfg.EnableHSTS {
				h.Set("Strict-Transport-Security", hstsValue)
			}

			next.ServeHTTP(&serverStrippingWriter{ResponseWriter: w}, r)
		})
	}
}

// serverStrippingWriter deletes the Server header at the last moment before
// the header block is committed, catching handlers that set it themselves.
type serverStrippingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *serverStrippingWriter) WriteHeader(code int) {
	if !w.wrote {
		w.wrote = true
		w.Header().Del("Server")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *serverStrippingWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush passes through so streaming handlers keep working.
func (w *serverStrippingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through so the WebSocket upgrade still works underneath
// the header stage.
func (w *serverStrippingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		w.Header().Del("Server")
		w.wrote = true
		return hj.Hijack()
	}
	return nil, nil, errors.New("httpx: underlying writer does not support hijacking")
}

// Unwrap supports http.ResponseController.
func (w *serverStrippingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
