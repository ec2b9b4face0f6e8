package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/soundlab/soundlab/internal/server/service"
	"github.com/soundlab/soundlab/internal/server/store"
	"github.com/soundlab/soundlab/internal/server/ws"
	"github.com/soundlab/soundlab/pkg/httpx"
	"github.com/soundlab/soundlab/pkg/jwtx"
	"github.com/soundlab/soundlab/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers and fixes the
// admission pipeline order:
//
//	security-headers -> rate-limit -> authn -> csrf
//
// The first two stages guard every route; authn is added on protected
// routes and csrf on state-changing protected routes. The order is
// declared here as an explicit stage list, never inferred from
// registration sequence.
type Router struct {
	Mux *http.ServeMux

	validator    jwtx.Validator
	limiter      *httpx.SlidingWindowLimiter
	csrf         *httpx.CSRFVerifier
	headers      httpx.SecurityHeadersConfig
	gate         *ws.Gatekeeper
	now          func() time.Time
	secureCookie bool

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	Telemetry    *service.TelemetryService
	Audit        *service.AuditService
	base         httpx.Pipeline
	authnStage   httpx.Stage
	csrfStage    httpx.Stage
}

type RouterConfig struct {
	Validator    jwtx.Validator
	Limiter      *httpx.SlidingWindowLimiter
	CSRF         *httpx.CSRFVerifier
	Headers      httpx.SecurityHeadersConfig
	Gate         *ws.Gatekeeper
	Store        store.Store
	Logger       *slog.Logger
	BuildVersion string
	SecureCookie bool

	// Now is the pipeline clock; nil means time.Now.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig, telemetry *service.TelemetryService, audit *service.AuditService) *Router {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		validator:    cfg.Validator,
		limiter:      cfg.Limiter,
		csrf:         cfg.CSRF,
		headers:      cfg.Headers,
		gate:         cfg.Gate,
		now:          now,
		secureCookie: cfg.SecureCookie,
		buildVersion: cfg.BuildVersion,
		startTime:    time.Now(),
		logger:       cfg.Logger,
		store:        cfg.Store,
		Telemetry:    telemetry,
		Audit:        audit,
	}

	hook := audit.Hook()
	r.base = httpx.Pipeline{
		{Name: "security-headers", Wrap: httpx.SecurityHeaders(cfg.Headers)},
		{Name: "rate-limit", Wrap: httpx.RateLimit(cfg.Limiter, now, hook)},
	}
	r.authnStage = httpx.Stage{Name: "authn", Wrap: httpx.Authn(cfg.Validator, now, hook)}
	r.csrfStage = httpx.Stage{Name: "csrf", Wrap: httpx.VerifyCSRF(cfg.CSRF, hook)}

	return r
}

// protected wraps h in the token-validation stage.
func (r *Router) protected(h http.Handler) http.Handler {
	return httpx.Pipeline{r.authnStage}.Apply(h)
}

// mutating wraps h in token validation plus CSRF verification, in that order.
func (r *Router) mutating(h http.Handler) http.Handler {
	return httpx.Pipeline{r.authnStage, r.csrfStage}.Apply(h)
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerTelemetry()
	r.registerStream()
}

// ServeHTTP applies request logging and the route-independent pipeline
// stages around the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h := r.base.Apply(r.Mux)
	slogx.HTTPMiddleware(r.logger)(h).ServeHTTP(w, req)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", http.HandlerFunc(r.handleLivez))
	r.Mux.Handle("GET /readyz", http.HandlerFunc(r.handleReadyz))
	r.Mux.Handle("GET /api/csrf", http.HandlerFunc(r.handleCSRF))
}

func (r *Router) registerTelemetry() {
	r.Mux.Handle("GET /api/status", r.protected(http.HandlerFunc(r.handleStatus)))
	r.Mux.Handle("POST /api/sessions", r.mutating(http.HandlerFunc(r.handleStartSession)))
	r.Mux.Handle("GET /api/security/events", r.protected(http.HandlerFunc(r.handleSecurityEvents)))
}

func (r *Router) registerStream() {
	stream := &StreamHandler{
		Gate:      r.gate,
		Telemetry: r.Telemetry,
		Audit:     r.Audit,
		Logger:    r.logger,
	}
	r.Mux.Handle("GET /ws/stream", stream)
}
