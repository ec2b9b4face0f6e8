package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/soundlab/soundlab/pkg/httpx"
	"github.com/soundlab/soundlab/pkg/slogx"
)

// handleStatus returns the current telemetry snapshot for the validated
// caller.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	claims := httpx.ClaimsFromContext(req.Context())

	now := r.now().UTC()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"subject":  claims.Subject,
		"uptime_s": int64(r.Telemetry.Uptime(now).Seconds()),
		"snapshot": r.Telemetry.Snapshot(now),
	})
}

// handleStartSession allocates a capture session for the caller. This is the
// one state-changing REST operation, so it sits behind CSRF verification as
// well as token validation.
func (r *Router) handleStartSession(w http.ResponseWriter, req *http.Request) {
	claims := httpx.ClaimsFromContext(req.Context())
	id := r.Telemetry.StartSession()

	slogx.FromContext(req.Context()).Info("capture session started",
		"session_id", id, "sub", claims.Subject)

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"started_at": time.Now().UTC(),
	})
}

// handleSecurityEvents lists recent audit events, newest first. Intended for
// operator dashboards; ?limit= caps the page size.
func (r *Router) handleSecurityEvents(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	events, err := r.Audit.Recent(req.Context(), limit)
	if err != nil {
		slogx.FromContext(req.Context()).Error("failed to list security events", "error", err)
		httpx.WriteDetail(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
