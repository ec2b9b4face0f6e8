package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soundlab/soundlab/internal/server/domain"
	"github.com/soundlab/soundlab/internal/server/service"
	"github.com/soundlab/soundlab/internal/server/ws"
	"github.com/soundlab/soundlab/pkg/httpx"
)

// DefaultPushInterval is how often a snapshot frame is pushed to a stream
// client.
const DefaultPushInterval = time.Second

// StreamHandler upgrades /ws/stream connections and pushes telemetry
// snapshots to authenticated dashboard clients. Admission runs in gate
// order: per-IP cap, origin, subprotocol, then first-message token auth.
type StreamHandler struct {
	Gate         *ws.Gatekeeper
	Telemetry    *service.TelemetryService
	Audit        *service.AuditService
	Logger       *slog.Logger
	PushInterval time.Duration
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := httpx.ClientIP(r)

	if !h.Gate.TryRegister(ip) {
		h.Audit.Record(ctx, domain.EventWSConnLimit, "per-IP connection limit reached", "", r.URL.Path, ip)
		w.Header().Set("Retry-After", "5")
		httpx.WriteDetail(w, http.StatusTooManyRequests, "too many concurrent connections")
		return
	}
	defer h.Gate.Release(ip)

	upgrader := websocket.Upgrader{
		Subprotocols: h.Gate.Protocols(),
		CheckOrigin: func(req *http.Request) bool {
			origin := req.Header.Get("Origin")
			if !h.Gate.CheckOrigin(origin) {
				h.Audit.Record(ctx, domain.EventWSOriginDenied, "origin not allowed: "+origin, "", req.URL.Path, ip)
				return false
			}
			return true
		},
	}

	// Upgrade answers 403 itself when CheckOrigin refuses.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if !h.Gate.CheckProtocol(conn.Subprotocol()) {
		h.Audit.Record(ctx, domain.EventWSProtocolDenied, "subprotocol not negotiated", "", r.URL.Path, ip)
		h.closeWith(conn, ws.ClosePolicyViolation, "subprotocol not allowed")
		return
	}

	claims, err := h.Gate.Authenticate(conn, nil)
	if err != nil {
		h.Audit.Record(ctx, domain.EventWSAuthFailed, "stream authentication failed", "", r.URL.Path, ip)
		return
	}

	subject := ""
	if claims != nil {
		subject = claims.Subject
	}
	h.Logger.Info("stream connected", "ip", ip, "sub", subject)

	h.Telemetry.StreamStarted()
	defer h.Telemetry.StreamStopped()

	// Read pump: inbound frames are control-only today and just drained,
	// but a client flooding the socket gets cut off.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		throttle := h.Gate.Throttle()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			if !throttle.Allow() {
				h.closeWith(conn, websocket.ClosePolicyViolation, "message rate exceeded")
				return
			}
		}
	}()

	interval := h.PushInterval
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := h.Telemetry.Snapshot(time.Now().UTC())
			if err := conn.WriteJSON(snap); err != nil {
				h.Logger.Debug("stream write failed", "ip", ip, "error", err)
				return
			}
		case <-readClosed:
			h.Logger.Info("stream disconnected", "ip", ip, "sub", subject)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
}
