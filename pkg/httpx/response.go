package httpx

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// WriteJSON writes a JSON response with the given status code. Sensitive
// endpoints shouldn't be cached, so Cache-Control is always no-store.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes the uniform rejection body used by every pipeline
// stage: {"detail": "<message>"}.
func WriteDetail(w http.ResponseWriter, code int, detail string) {
	WriteJSON(w, code, map[string]string{"detail": detail})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// AuditFunc receives security-relevant rejections (replay, rate limit,
// CSRF, gate refusals) for out-of-band recording. A nil AuditFunc is
// silently skipped and recording never affects the request decision.
type AuditFunc func(ctx context.Context, kind, detail, identity, endpoint string)

// ClientIP extracts the client address, preferring proxy headers over
// RemoteAddr so rate limiting keys on the real peer behind a load balancer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
