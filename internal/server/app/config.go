package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	JWTAlgorithm     string        // Signing algorithm tokens arrive with (HS256, RS256) (default: HS256)
	JWTSecret        string        // Shared secret for HS256 (required when HS256)
	JWTPublicKeyFile string        // PEM public key path for RS256 (required when RS256)
	JWTAudience      string        // Expected audience claim (default: soundlab-api)
	JWTLeeway        time.Duration // Clock-skew tolerance for expiry checks (default: 60s)
	JWTMaxAge        time.Duration // Maximum accepted token lifetime (default: 15m)
	NonceCacheSize   int           // Replay cache capacity (default: 10000)

	RateLimit   int           // Requests allowed per identity per endpoint per window (default: 60)
	RateWindow  time.Duration // Sliding window length (default: 60s)
	RateBuckets int           // Bound on tracked (identity, endpoint) buckets (default: 4096)

	CSRFEnabled bool   // Double-submit verification on state-changing routes (default: true)
	CSRFCookie  string // Cookie name (default: csrf_token)
	CSRFHeader  string // Header name (default: X-CSRF-Token)

	PermissionsPolicy string // Override for the Permissions-Policy header
	CSP               string // Override for Content-Security-Policy
	EnableHSTS        bool   // Emit Strict-Transport-Security (default: true outside dev)

	WSOrigins      []string // Allowed WebSocket origins (scheme://host[:port])
	WSProtocols    []string // Allowed subprotocols (default: soundlab-v1)
	WSMaxConnPerIP int      // Concurrent WebSocket connections per address (default: 10)

	DatabaseFile         string        // SQLite database path (default: ./soundlab.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Sweep interval (default: 1h)
	EventRetention       time.Duration // Security event retention (default: 30 days)
	SampleRateHz         int           // Capture sample rate reported in snapshots (default: 48000)
}

func LoadConfig() Config {
	cfg := Config{
		JWTAlgorithm:     getEnvOrDefault("SOUNDLAB_JWT_ALGORITHM", "HS256"),
		JWTSecret:        os.Getenv("SOUNDLAB_JWT_SECRET"),
		JWTPublicKeyFile: os.Getenv("SOUNDLAB_JWT_PUBLIC_KEY_FILE"),
		JWTAudience:      getEnvOrDefault("SOUNDLAB_JWT_AUDIENCE", "soundlab-api"),
		JWTLeeway:        getEnvDurationOrDefault("SOUNDLAB_JWT_LEEWAY", 60*time.Second),
		JWTMaxAge:        getEnvDurationOrDefault("SOUNDLAB_JWT_MAX_AGE", 15*time.Minute),
		NonceCacheSize:   getEnvIntOrDefault("SOUNDLAB_NONCE_CACHE_SIZE", 10_000),

		RateLimit:   getEnvIntOrDefault("SOUNDLAB_RATE_LIMIT", 60),
		RateWindow:  getEnvDurationOrDefault("SOUNDLAB_RATE_WINDOW", time.Minute),
		RateBuckets: getEnvIntOrDefault("SOUNDLAB_RATE_BUCKETS", 4096),

		CSRFEnabled: getEnvBoolOrDefault("SOUNDLAB_CSRF_ENABLED", true),
		CSRFCookie:  getEnvOrDefault("SOUNDLAB_CSRF_COOKIE", "csrf_token"),
		CSRFHeader:  getEnvOrDefault("SOUNDLAB_CSRF_HEADER", "X-CSRF-Token"),

		PermissionsPolicy: os.Getenv("SOUNDLAB_PERMISSIONS_POLICY"),
		CSP:               os.Getenv("SOUNDLAB_CSP"),

		WSOrigins:      getEnvListOrDefault("SOUNDLAB_WS_ORIGINS", nil),
		WSProtocols:    getEnvListOrDefault("SOUNDLAB_WS_PROTOCOLS", []string{"soundlab-v1"}),
		WSMaxConnPerIP: getEnvIntOrDefault("SOUNDLAB_WS_MAX_CONN_PER_IP", 10),

		DatabaseFile:         getEnvOrDefault("SOUNDLAB_DATABASE_FILE", "soundlab.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		EventRetention:       getEnvDurationOrDefault("SOUNDLAB_EVENT_RETENTION", 30*24*time.Hour),
		SampleRateHz:         getEnvIntOrDefault("SOUNDLAB_SAMPLE_RATE_HZ", 48_000),
	}

	// HSTS only makes sense over TLS; dev runs plain HTTP.
	cfg.EnableHSTS = getEnvBoolOrDefault("SOUNDLAB_ENABLE_HSTS", cfg.Env != "dev")

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma-separated env var, dropping empty parts.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
