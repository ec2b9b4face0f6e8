package httpx

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/soundlab/soundlab/pkg/cryptox"
	"github.com/soundlab/soundlab/pkg/slogx"
)

// RateLimitConfig defines the sliding-window parameters.
type RateLimitConfig struct {
	// Limit is the number of requests admitted per rolling window.
	// The limit is inclusive: request Limit is admitted, Limit+1 is not.
	Limit int
	// Window is the trailing interval requests are counted over.
	Window time.Duration
	// MaxBuckets bounds how many (identity, endpoint) keys are tracked at
	// once; least-recently-touched keys are dropped beyond that. Zero
	// means DefaultMaxBuckets.
	MaxBuckets int
}

// DefaultMaxBuckets is sized for the expected concurrent identity count of
// a single-instance deployment.
const DefaultMaxBuckets = 4096

type sample struct {
	at time.Time
	n  int
}

type bucket struct {
	samples []sample
}

// trim drops samples that have left the window [now-window, now].
func (b *bucket) trim(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(b.samples) && b.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.samples = b.samples[i:]
	}
}

func (b *bucket) total() int {
	t := 0
	for _, s := range b.samples {
		t += s.n
	}
	return t
}

// SlidingWindowLimiter tracks request counts per (identity, endpoint) over
// a trailing window. All decisions for a key happen under one mutex, so two
// racing checks can never both admit past the limit.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *bucket]
	cfg     RateLimitConfig
}

// NewSlidingWindowLimiter builds a limiter for the given config.
func NewSlidingWindowLimiter(cfg RateLimitConfig) *SlidingWindowLimiter {
	if cfg.MaxBuckets <= 0 {
		cfg.MaxBuckets = DefaultMaxBuckets
	}
	// lru.New only fails for a non-positive size, which is ruled out above.
	cache, _ := lru.New[string, *bucket](cfg.MaxBuckets)
	return &SlidingWindowLimiter{buckets: cache, cfg: cfg}
}

func bucketKey(identity, endpoint string) string {
	return identity + "|" + endpoint
}

// Allow reports whether a request from identity to endpoint is admitted at
// time now, and records it if so. Stale samples are purged first; the
// decision and the append are one atomic step.
func (l *SlidingWindowLimiter) Allow(identity, endpoint string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey(identity, endpoint)
	b, ok := l.buckets.Get(key)
	if !ok {
		b = &bucket{}
		l.buckets.Add(key, b)
	}

	b.trim(now, l.cfg.Window)
	if b.total() >= l.cfg.Limit {
		return false
	}

	b.samples = append(b.samples, sample{at: now, n: 1})
	return true
}

// RetryAfter returns how long until the oldest surviving sample exits the
// window, i.e. when the next request could be admitted. Zero when the
// bucket is currently under the limit.
func (l *SlidingWindowLimiter) RetryAfter(identity, endpoint string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets.Get(bucketKey(identity, endpoint))
	if !ok {
		return 0
	}

	b.trim(now, l.cfg.Window)
	if b.total() < l.cfg.Limit || len(b.samples) == 0 {
		return 0
	}

	return b.samples[0].at.Add(l.cfg.Window).Sub(now)
}

// Sweep drops buckets whose samples have all aged out of the window and
// returns how many were removed. Called by housekeeping so identities that
// never return don't linger until LRU pressure evicts them.
func (l *SlidingWindowLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for _, key := range l.buckets.Keys() {
		b, ok := l.buckets.Peek(key)
		if !ok {
			continue
		}
		b.trim(now, l.cfg.Window)
		if len(b.samples) == 0 {
			l.buckets.Remove(key)
			removed++
		}
	}
	return removed
}

// Buckets returns the number of tracked keys.
func (l *SlidingWindowLimiter) Buckets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buckets.Len()
}

// RateLimit is the admission stage. Identity is a one-way hash of the
// bearer token when one is presented (the raw credential never becomes a
// key), falling back to the client address. The identity used is exposed to
// downstream handlers via the request context.
func RateLimit(l *SlidingWindowLimiter, now func() time.Time, audit AuditFunc) Middleware {
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := requestIdentity(r)
			endpoint := r.URL.Path
			ts := now()

			if !l.Allow(identity, endpoint, ts) {
				retry := l.RetryAfter(identity, endpoint, ts)
				retrySecs := int(math.Ceil(retry.Seconds()))
				if retrySecs < 1 {
					retrySecs = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Limit))
				w.Header().Set("X-RateLimit-Window", l.cfg.Window.String())

				slogx.FromContext(ctx).Warn("rate limit exceeded",
					"identity", identity,
					"endpoint", endpoint,
					"retry_after", retrySecs,
				)
				if audit != nil {
					audit(ctx, "rate_limit_exceeded", "request rate over limit", identity, endpoint)
				}

				WriteDetail(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithRateIdentity(ctx, identity)))
		})
	}
}

// requestIdentity derives the rate-limit key subject for a request.
func requestIdentity(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
		if raw != "" {
			return cryptox.RateIdentity(raw)
		}
	}
	return ClientIP(r)
}
