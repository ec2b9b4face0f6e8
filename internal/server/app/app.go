package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	httpapi "github.com/soundlab/soundlab/internal/server/http"
	"github.com/soundlab/soundlab/internal/server/service"
	"github.com/soundlab/soundlab/internal/server/store"
	"github.com/soundlab/soundlab/internal/server/store/drivers/sqlite"
	"github.com/soundlab/soundlab/internal/server/ws"
	"github.com/soundlab/soundlab/pkg/httpx"
	"github.com/soundlab/soundlab/pkg/jwtx"
	"github.com/soundlab/soundlab/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the telemetry server with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db        store.Store
	validator jwtx.Validator
	limiter   *httpx.SlidingWindowLimiter
	csrf      *httpx.CSRFVerifier
	gate      *ws.Gatekeeper

	// Services
	telemetryService    *service.TelemetryService
	auditService        *service.AuditService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "soundlab-server",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	validator, err := buildValidator(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token validator: %w", err)
	}
	app.validator = validator

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("soundlab server starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down soundlab server...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("soundlab server stopped")
	return nil
}

// initDatabase opens the event store and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// buildValidator constructs the token validator the pipeline and WebSocket
// gate share, so REST and stream auth draw on the same nonce cache.
func buildValidator(cfg Config, logger *slog.Logger) (jwtx.Validator, error) {
	opts := jwtx.Options{
		Audience:        cfg.JWTAudience,
		Leeway:          cfg.JWTLeeway,
		MaxAge:          cfg.JWTMaxAge,
		ReplayCacheSize: cfg.NonceCacheSize,
		Logger:          logger,
	}

	switch cfg.JWTAlgorithm {
	case "HS256":
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("SOUNDLAB_JWT_SECRET is required for HS256")
		}
		return jwtx.NewValidatorHS256([]byte(cfg.JWTSecret), opts), nil

	case "RS256":
		if cfg.JWTPublicKeyFile == "" {
			return nil, fmt.Errorf("SOUNDLAB_JWT_PUBLIC_KEY_FILE is required for RS256")
		}
		pem, err := os.ReadFile(cfg.JWTPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key file: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		return jwtx.NewValidatorRS256(pub, opts), nil

	default:
		return nil, fmt.Errorf("unsupported JWT algorithm %q", cfg.JWTAlgorithm)
	}
}

// initServices initializes middleware components and business services.
func (app *Application) initServices() {
	app.limiter = httpx.NewSlidingWindowLimiter(httpx.RateLimitConfig{
		Limit:      app.cfg.RateLimit,
		Window:     app.cfg.RateWindow,
		MaxBuckets: app.cfg.RateBuckets,
	})

	app.csrf = httpx.NewCSRFVerifier(httpx.CSRFConfig{
		Enabled:    app.cfg.CSRFEnabled,
		CookieName: app.cfg.CSRFCookie,
		HeaderName: app.cfg.CSRFHeader,
	})

	app.gate = ws.NewGatekeeper(ws.Config{
		AllowedOrigins:   app.cfg.WSOrigins,
		AllowedProtocols: app.cfg.WSProtocols,
		RequireAuth:      true,
		MaxConnsPerIP:    app.cfg.WSMaxConnPerIP,
	}, app.validator, app.logger)

	app.telemetryService = service.NewTelemetryService(app.cfg.SampleRateHz)
	app.auditService = &service.AuditService{Store: app.db, Logger: app.logger}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.limiter,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.EventRetention,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Validator: app.validator,
		Limiter:   app.limiter,
		CSRF:      app.csrf,
		Headers: httpx.SecurityHeadersConfig{
			PermissionsPolicy:     app.cfg.PermissionsPolicy,
			ContentSecurityPolicy: app.cfg.CSP,
			EnableHSTS:            app.cfg.EnableHSTS,
		},
		Gate:         app.gate,
		Store:        app.db,
		Logger:       app.logger,
		BuildVersion: BuildVersion,
		SecureCookie: app.cfg.Env != "dev",
	}, app.telemetryService, app.auditService)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
