package http

import (
	"net/http"
	"time"

	"github.com/soundlab/soundlab/pkg/httpx"
	"github.com/soundlab/soundlab/pkg/slogx"
)

// handleLivez reports process liveness. No dependencies are touched; if we
// can answer, we're alive.
func (r *Router) handleLivez(w http.ResponseWriter, req *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  r.buildVersion,
		"uptime_s": int64(time.Since(r.startTime).Seconds()),
	})
}

// handleReadyz reports readiness: the event store must answer a ping before
// the instance takes traffic.
func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Ping(req.Context()); err != nil {
		slogx.FromContext(req.Context()).Error("readiness check failed", "error", err)
		httpx.WriteDetail(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleCSRF issues a fresh double-submit token. The cookie carries the
// canonical value; the body returns it too so non-browser clients can echo
// it without scraping Set-Cookie.
func (r *Router) handleCSRF(w http.ResponseWriter, req *http.Request) {
	token, err := r.csrf.Issue(w, r.secureCookie)
	if err != nil {
		slogx.FromContext(req.Context()).Error("failed to issue csrf token", "error", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}
