// Per-client rate limiting for the intervention endpoint.
// Fixed-window counter per client address, kept in memory.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per client within a fixed window.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int           // requests per window
	period  time.Duration // window length
	now     func() time.Time
	swept   time.Time
}

type window struct {
	remaining int
	opened    time.Time
}

// NewRateLimiter allows limit requests per period for each client.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow reports whether client may make another request, consuming one
// slot if so.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	w, ok := rl.windows[client]
	if !ok || now.Sub(w.opened) >= rl.period {
		rl.windows[client] = &window{remaining: rl.limit - 1, opened: now}
		return rl.limit > 0
	}
	if w.remaining > 0 {
		w.remaining--
		return true
	}
	return false
}

// RetryAfter returns whole seconds until client's window reopens.
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[client]
	if !ok {
		return 0
	}
	left := rl.period - rl.now().Sub(w.opened)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

// sweep drops stale windows at most once per period.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.swept) < rl.period {
		return
	}
	rl.swept = now
	for client, w := range rl.windows {
		if now.Sub(w.opened) > 2*rl.period {
			delete(rl.windows, client)
		}
	}
}

// clientAddr prefers the first X-Forwarded-For hop, falling back to the
// connection's host.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware answers 429 with Retry-After once a client exceeds
// its window.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !rl.Allow(client) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(client)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
