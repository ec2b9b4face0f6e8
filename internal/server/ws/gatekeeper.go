package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/soundlab/soundlab/pkg/jwtx"
)

// Close codes mirrored from the REST status mapping: 4401 auth, 4403
// origin/protocol, 4429 connection cap.
const (
	CloseAuthRequired    = 4401
	ClosePolicyViolation = 4403
	CloseConnLimit       = 4429
)

// Config controls WebSocket admission.
type Config struct {
	// AllowedOrigins lists acceptable Origin values (scheme://host[:port]).
	// Empty means no origin is acceptable; the gate fails closed.
	AllowedOrigins []string

	// AllowedProtocols lists acceptable subprotocols. Defaults to
	// "soundlab-v1".
	AllowedProtocols []string

	// RequireAuth demands a first-message token before any streaming.
	RequireAuth bool

	// MaxConnsPerIP caps concurrent connections per client address to
	// resist handshake floods. Defaults to 10.
	MaxConnsPerIP int

	// AuthTimeout bounds how long a connection may sit unauthenticated.
	// Defaults to 10s.
	AuthTimeout time.Duration

	// MessagesPerSecond and MessageBurst throttle inbound messages per
	// connection. Defaults: 20/s with a burst of 40.
	MessagesPerSecond float64
	MessageBurst      int
}

func (c Config) withDefaults() Config {
	if len(c.AllowedProtocols) == 0 {
		c.AllowedProtocols = []string{"soundlab-v1"}
	}
	if c.MaxConnsPerIP <= 0 {
		c.MaxConnsPerIP = 10
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = 20
	}
	if c.MessageBurst <= 0 {
		c.MessageBurst = 40
	}
	return c
}

// Gatekeeper enforces origin and subprotocol allow-lists, per-IP connection
// caps and first-message token auth for WebSocket connections. Token auth
// goes through the same validator as REST, so a WebSocket connect consumes
// a nonce exactly like a REST request does.
type Gatekeeper struct {
	cfg       Config
	origins   map[string]struct{}
	protocols map[string]struct{}
	validator jwtx.Validator
	logger    *slog.Logger

	mu        sync.Mutex
	connsByIP map[string]int
}

func NewGatekeeper(cfg Config, validator jwtx.Validator, logger *slog.Logger) *Gatekeeper {
	cfg = cfg.withDefaults()

	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if n, ok := normalizeOrigin(o); ok {
			origins[n] = struct{}{}
		}
	}
	protocols := make(map[string]struct{}, len(cfg.AllowedProtocols))
	for _, p := range cfg.AllowedProtocols {
		protocols[p] = struct{}{}
	}

	return &Gatekeeper{
		cfg:       cfg,
		origins:   origins,
		protocols: protocols,
		validator: validator,
		logger:    logger,
		connsByIP: make(map[string]int),
	}
}

// Protocols returns the allowed subprotocols for upgrade negotiation.
func (g *Gatekeeper) Protocols() []string {
	return g.cfg.AllowedProtocols
}

// CheckOrigin reports whether origin is on the allow-list. Missing or
// unparseable origins fail closed.
func (g *Gatekeeper) CheckOrigin(origin string) bool {
	n, ok := normalizeOrigin(origin)
	if !ok {
		g.logger.Warn("websocket origin rejected", "origin", origin)
		return false
	}
	if _, allowed := g.origins[n]; !allowed {
		g.logger.Warn("websocket origin not allowed", "origin", n)
		return false
	}
	return true
}

// CheckProtocol reports whether the negotiated subprotocol is allowed.
func (g *Gatekeeper) CheckProtocol(protocol string) bool {
	if protocol == "" {
		return false
	}
	_, ok := g.protocols[protocol]
	if !ok {
		g.logger.Warn("websocket protocol not allowed", "protocol", protocol)
	}
	return ok
}

// TryRegister reserves a connection slot for ip, reporting false when the
// per-IP cap is reached. Callers must Release what they register.
func (g *Gatekeeper) TryRegister(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connsByIP[ip] >= g.cfg.MaxConnsPerIP {
		g.logger.Warn("websocket connection limit reached", "ip", ip, "limit", g.cfg.MaxConnsPerIP)
		return false
	}
	g.connsByIP[ip]++
	return true
}

// Release frees a slot reserved by TryRegister.
func (g *Gatekeeper) Release(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connsByIP[ip] <= 1 {
		delete(g.connsByIP, ip)
		return
	}
	g.connsByIP[ip]--
}

// Connections reports the current count for ip.
func (g *Gatekeeper) Connections(ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connsByIP[ip]
}

// Throttle returns a fresh per-connection inbound message limiter.
func (g *Gatekeeper) Throttle() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(g.cfg.MessagesPerSecond), g.cfg.MessageBurst)
}

// authMessage is the expected first frame on an authenticated stream.
type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

var errAuthRejected = errors.New("ws: authentication rejected")

// Authenticate reads the first message off conn and validates the token it
// carries. On failure the connection is closed with 4401 and an error is
// returned; the caller only has to bail out.
func (g *Gatekeeper) Authenticate(conn *websocket.Conn, now func() time.Time) (*jwtx.Claims, error) {
	if !g.cfg.RequireAuth {
		return nil, nil
	}
	if now == nil {
		now = time.Now
	}

	_ = conn.SetReadDeadline(now().Add(g.cfg.AuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var msg authMessage
	if err := conn.ReadJSON(&msg); err != nil {
		g.closeWith(conn, CloseAuthRequired, "authentication required")
		return nil, errAuthRejected
	}

	if msg.Type != "auth" || msg.Token == "" {
		g.closeWith(conn, CloseAuthRequired, "authentication required")
		return nil, errAuthRejected
	}

	claims, err := g.validator.Validate(msg.Token, now())
	if err != nil {
		g.logger.Warn("websocket auth failed", "error", err)
		g.closeWith(conn, CloseAuthRequired, "invalid token")
		return nil, errAuthRejected
	}

	g.logger.Info("websocket authenticated", "sub", claims.Subject)
	return claims, nil
}

func (g *Gatekeeper) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

// normalizeOrigin reduces an Origin header to scheme://host[:port].
func normalizeOrigin(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

// MarshalAuthMessage builds the first-frame payload a client sends; shared
// with tests and example clients.
func MarshalAuthMessage(token string) ([]byte, error) {
	return json.Marshal(authMessage{Type: "auth", Token: token})
}
