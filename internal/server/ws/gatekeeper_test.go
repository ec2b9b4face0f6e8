package ws_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/soundlab/soundlab/internal/server/ws"
	"github.com/soundlab/soundlab/pkg/jwtx"
)

const (
	gateSecret   = "gate_test_secret"
	gateAudience = "soundlab-api"
)

func newGatekeeper(cfg ws.Config) *ws.Gatekeeper {
	v := jwtx.NewValidatorHS256([]byte(gateSecret), jwtx.Options{Audience: gateAudience})
	return ws.NewGatekeeper(cfg, v, slog.Default())
}

func mintStreamToken(t *testing.T, t0 time.Time, jti string) string {
	t.Helper()
	claims := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "dash_user",
			Audience:  jwt.ClaimStrings{gateAudience},
			IssuedAt:  jwt.NewNumericDate(t0),
			ExpiresAt: jwt.NewNumericDate(t0.Add(10 * time.Minute)),
			ID:        jti,
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(gateSecret))
	require.NoError(t, err)
	return tok
}

func TestCheckOrigin(t *testing.T) {
	g := newGatekeeper(ws.Config{AllowedOrigins: []string{"http://localhost:3000"}})

	require.True(t, g.CheckOrigin("http://localhost:3000"))
	// Paths and trailing slashes are normalized away.
	require.True(t, g.CheckOrigin("http://localhost:3000/"))

	require.False(t, g.CheckOrigin("http://evil.com"))
	require.False(t, g.CheckOrigin("https://localhost:3000")) // scheme matters
	require.False(t, g.CheckOrigin(""))
	require.False(t, g.CheckOrigin("::bogus::"))
}

func TestCheckProtocol(t *testing.T) {
	g := newGatekeeper(ws.Config{})

	require.True(t, g.CheckProtocol("soundlab-v1"))
	require.False(t, g.CheckProtocol("evil-protocol"))
	require.False(t, g.CheckProtocol(""))
}

func TestConnectionCapPerIP(t *testing.T) {
	g := newGatekeeper(ws.Config{MaxConnsPerIP: 5})
	ip := "192.0.2.50"

	for i := range 5 {
		require.True(t, g.TryRegister(ip), "connection %d", i+1)
	}
	require.False(t, g.TryRegister(ip))

	// Another address is unaffected.
	require.True(t, g.TryRegister("192.0.2.51"))

	g.Release(ip)
	require.True(t, g.TryRegister(ip))
	require.Equal(t, 5, g.Connections(ip))
}

// dialAuth runs the gatekeeper authentication over a real WebSocket pair
// and returns the handshake outcome observed server-side.
func dialAuth(t *testing.T, g *ws.Gatekeeper, payload []byte) (claims *jwtx.Claims, authErr error) {
	t.Helper()

	done := make(chan struct{})
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		claims, authErr = g.Authenticate(conn, nil)
		close(done)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, payload))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("authentication did not complete")
	}
	return claims, authErr
}

func TestAuthenticateAcceptsValidFirstMessage(t *testing.T) {
	g := newGatekeeper(ws.Config{RequireAuth: true})
	t0 := time.Now().UTC()

	payload, err := ws.MarshalAuthMessage(mintStreamToken(t, t0, "ws_nonce_ok"))
	require.NoError(t, err)

	claims, authErr := dialAuth(t, g, payload)
	require.NoError(t, authErr)
	require.NotNil(t, claims)
	require.Equal(t, "dash_user", claims.Subject)
}

func TestAuthenticateRejectsBadFirstMessage(t *testing.T) {
	g := newGatekeeper(ws.Config{RequireAuth: true})

	_, authErr := dialAuth(t, g, []byte(`{"type":"subscribe"}`))
	require.Error(t, authErr)
}

func TestAuthenticateConsumesNonce(t *testing.T) {
	g := newGatekeeper(ws.Config{RequireAuth: true})
	t0 := time.Now().UTC()
	tok := mintStreamToken(t, t0, "ws_nonce_replay")

	payload, err := ws.MarshalAuthMessage(tok)
	require.NoError(t, err)

	_, authErr := dialAuth(t, g, payload)
	require.NoError(t, authErr)

	// Same token on a second connection is a replay.
	_, authErr = dialAuth(t, g, payload)
	require.Error(t, authErr)
}

func TestAuthenticateSkippedWhenDisabled(t *testing.T) {
	g := newGatekeeper(ws.Config{RequireAuth: false})

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	done := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, authErr := g.Authenticate(conn, nil)
		done <- authErr
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, <-done)
}

func TestThrottle(t *testing.T) {
	g := newGatekeeper(ws.Config{MessagesPerSecond: 1, MessageBurst: 2})
	l := g.Throttle()

	require.True(t, l.Allow())
	require.True(t, l.Allow())
	require.False(t, l.Allow())
}
