package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/crm/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Rate limit profiles. The app overrides them from config.
var (
	// LoginLimit guards credential endpoints against brute force: 5 attempts
	// per client every 15 minutes.
	LoginLimit = RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            15 * time.Minute,
		Burst:             5,
	}

	// ModerateLimit for authenticated operations.
	ModerateLimit = RateLimitConfig{
		RequestsPerWindow: 20,
		Window:            time.Minute,
		Burst:             20,
	}
)

// Decision is the outcome of a Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      int
	Window     time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Check(key string) Decision
}

// RateLimiter keeps one token bucket per key. Idle keys are dropped by
// Sweep, which the housekeeping loop calls, so the map does not grow with
// every address that ever connected.
type RateLimiter struct {
	cfg      RateLimitConfig
	limit    rate.Limit
	limiters sync.Map // map[string]*limiterEntry
}

var _ Limiter = (*RateLimiter)(nil)

type limiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// NewRateLimiter builds a limiter. Zero fields fall back to ModerateLimit.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = ModerateLimit.RequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = ModerateLimit.Window
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}
	return &RateLimiter{
		cfg:   cfg,
		limit: rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
	}
}

// Config returns the effective configuration.
func (rl *RateLimiter) Config() RateLimitConfig { return rl.cfg }

// Check consumes one token for key if one is available.
func (rl *RateLimiter) Check(key string) Decision {
	now := time.Now()
	d := Decision{Allowed: true, Limit: rl.cfg.RequestsPerWindow, Window: rl.cfg.Window}

	e := rl.entry(key, now)
	if e.limiter.AllowN(now, 1) {
		return d
	}

	// Work out when the next token lands without consuming it.
	r := e.limiter.ReserveN(now, 1)
	d.Allowed = false
	d.RetryAfter = r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// Allow is Check without the details.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.Check(key).Allowed
}

func (rl *RateLimiter) entry(key string, now time.Time) *limiterEntry {
	if v, ok := rl.limiters.Load(key); ok {
		e := v.(*limiterEntry)
		e.mu.Lock()
		e.lastAccess = now
		e.mu.Unlock()
		return e
	}

	fresh := &limiterEntry{
		limiter:    rate.NewLimiter(rl.limit, rl.cfg.Burst),
		lastAccess: now,
	}
	v, _ := rl.limiters.LoadOrStore(key, fresh)
	return v.(*limiterEntry)
}

// Sweep removes keys not seen for at least idle and reports how many went.
// Only one entry is locked at a time so requests keep flowing meanwhile.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	removed := 0

	rl.limiters.Range(func(key, value any) bool {
		e := value.(*limiterEntry)
		e.mu.Lock()
		stale := !e.lastAccess.After(cutoff)
		e.mu.Unlock()

		if stale {
			rl.limiters.CompareAndDelete(key, value)
			removed++
		}
		return true
	})
	return removed
}

// Compact drops keys idle for a whole window. Their buckets have refilled
// by then, so forgetting them changes no decision.
func (rl *RateLimiter) Compact() int {
	return rl.Sweep(rl.cfg.Window)
}

// Len reports how many keys are tracked.
func (rl *RateLimiter) Len() int {
	n := 0
	rl.limiters.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID).
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserIDKeyExtractor extracts the user ID stored by AuthnMiddleware.
// Returns empty string if no user ID is found.
func UserIDKeyExtractor(r *http.Request) string {
	if userID, ok := r.Context().Value(CtxKeyUserID).(string); ok {
		return "user:" + userID
	}
	return ""
}

// RateLimitMiddleware rejects requests once the key's bucket is empty.
func RateLimitMiddleware(l Limiter, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				// If we can't extract a key, allow the request but log it
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			d := l.Check(key)
			if !d.Allowed {
				retryAfter := max(int(d.RetryAfter.Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Window", d.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":             "rate_limit_exceeded",
					"error_description": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(l Limiter) Middleware {
	return RateLimitMiddleware(l, IPKeyExtractor)
}

// RateLimitByUser limits by authenticated user, falling back to the client
// address when there is none.
func RateLimitByUser(l Limiter) Middleware {
	return RateLimitMiddleware(l, func(r *http.Request) string {
		if k := UserIDKeyExtractor(r); k != "" {
			return k
		}
		return IPKeyExtractor(r)
	})
}
