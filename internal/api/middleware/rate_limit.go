package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-IP rate limiting. Every RateLimit() call owns its limiters.

const (
	// Standard API: 60 requests/minute per IP
	rateLimitStandardPerMin = 60
	rateLimitStandardBurst  = 60
	// GET requests: 120 requests/minute per IP
	rateLimitGetPerMin = 120
	rateLimitGetBurst  = 120
	// Workload actions (start/stop/redeploy): 10 requests/minute per IP
	rateLimitActionPerMin = 10
	rateLimitActionBurst  = 10
)

type rateLimitTier int

const (
	tierAction rateLimitTier = iota
	tierGet
	tierStandard
)

func (t rateLimitTier) limiterConfig() (rate.Limit, int) {
	switch t {
	case tierAction:
		return rate.Limit(float64(rateLimitActionPerMin) / 60.0), rateLimitActionBurst
	case tierGet:
		return rate.Limit(float64(rateLimitGetPerMin) / 60.0), rateLimitGetBurst
	default:
		return rate.Limit(float64(rateLimitStandardPerMin) / 60.0), rateLimitStandardBurst
	}
}

func (t rateLimitTier) limitHeader() int {
	switch t {
	case tierAction:
		return rateLimitActionPerMin
	case tierGet:
		return rateLimitGetPerMin
	default:
		return rateLimitStandardPerMin
	}
}

// apiRateLimiter holds per-IP limiters per tier.
type apiRateLimiter struct {
	mu       sync.Mutex
	limiters map[rateLimitTier]map[string]*rate.Limiter
}

func newAPIRateLimiter() *apiRateLimiter {
	return &apiRateLimiter{limiters: map[rateLimitTier]map[string]*rate.Limiter{
		tierAction:   {},
		tierGet:      {},
		tierStandard: {},
	}}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		addr = addr[:idx]
	}
	return addr
}

func tierForRequest(r *http.Request) rateLimitTier {
	path := strings.ToLower(r.URL.Path)
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return tierGet
	}
	// Workload actions scale or restart deployments: strictest limit
	if strings.Contains(path, "/workloads/") || strings.HasPrefix(path, "/api/service/") {
		return tierAction
	}
	return tierStandard
}

func (l *apiRateLimiter) getLimiter(ip string, t rateLimitTier) *rate.Limiter {
	limit, burst := t.limiterConfig()
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.limiters[t]
	if lim, ok := m[ip]; ok {
		return lim
	}
	lim := rate.NewLimiter(limit, burst)
	m[ip] = lim
	return lim
}

// RateLimit returns middleware that limits requests per IP.
// Excludes /health and /metrics.
// Uses token bucket: 60/min standard, 120/min GET, 10/min workload actions.
// Returns 429 with Retry-After and sets X-RateLimit-* headers.
func RateLimit() func(http.Handler) http.Handler {
	limiters := newAPIRateLimiter()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			tier := tierForRequest(r)
			limiter := limiters.getLimiter(getClientIP(r), tier)
			reservation := limiter.Reserve()
			if !reservation.OK() {
				tooManyRequests(w, tier, time.Minute, `{"error":"Too many requests. Please retry after 60 seconds."}`)
				return
			}
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				tooManyRequests(w, tier, delay, `{"error":"Too many requests. Please retry later."}`)
				return
			}
			// Request allowed: set rate limit headers (remaining tokens after this request)
			tokens := int(limiter.Tokens())
			if tokens < 0 {
				tokens = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tier.limitHeader()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(tokens))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter, tier rateLimitTier, delay time.Duration, body string) {
	retryAfter := int(delay.Seconds()) + 1
	if retryAfter > 60 {
		retryAfter = 60
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tier.limitHeader()))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(delay).Unix(), 10))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(body))
}
