package domain

import (
	"time"

	"github.com/soundlab/soundlab/pkg/idx"
)

// SecurityEvent is one recorded admission rejection: a replay attempt, a
// rate-limit denial, a CSRF failure or a WebSocket gate refusal. Events
// exist for operator forensics; recording one never influences the request
// decision that produced it.
type SecurityEvent struct {
	ID         idx.ID    `json:"id"`
	Kind       string    `json:"kind"` // e.g. "replay_detected", "rate_limit_exceeded"
	Detail     string    `json:"detail"`
	Identity   string    `json:"identity"` // rate identity (token hash or client address), may be empty
	Endpoint   string    `json:"endpoint"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event kinds recorded by the admission pipeline and the WebSocket gate.
const (
	EventReplayDetected    = "replay_detected"
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventCSRFMismatch      = "csrf_mismatch"
	EventWSOriginDenied    = "ws_origin_denied"
	EventWSProtocolDenied  = "ws_protocol_denied"
	EventWSConnLimit       = "ws_connection_limit"
	EventWSAuthFailed      = "ws_auth_failed"
)
