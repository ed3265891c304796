package reserved

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimit bounds how often a single caller may hit the guarded routes.
// A zero RequestsPerMinute disables throttling.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

// RateLimiter keeps one token bucket per caller. Callers are identified by
// their authenticated principal address, falling back to the remote host for
// requests outside the auth group.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{limit: limit, visitors: make(map[string]*rate.Limiter)}
}

// Middleware rejects over-limit requests with 429 before they reach the
// engine.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if l == nil || l.limit.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		if !l.obtain(callerID(req)).Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (l *RateLimiter) obtain(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.visitors[id]; ok {
		return limiter
	}
	burst := l.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(l.limit.RequestsPerMinute/60.0), burst)
	l.visitors[id] = limiter
	return limiter
}

func callerID(req *http.Request) string {
	if principal, ok := PrincipalFromContext(req.Context()); ok {
		return FormatAddress(principal.Address)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
