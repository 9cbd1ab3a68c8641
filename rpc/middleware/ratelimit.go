package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit bounds the request throughput for a single client.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket keyed by the caller's IP
// address. Idle clients are evicted on a background sweep.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

const visitorTTL = 5 * time.Minute

// NewRateLimiter builds a limiter enforcing the given per-client limit.
func NewRateLimiter(limit RateLimit) *RateLimiter {
	if limit.RequestsPerSecond <= 0 {
		limit.RequestsPerSecond = 1
	}
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	rl := &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	go rl.sweep()
	return rl
}

// Middleware rejects requests exceeding the per-client limit with 429.
func (r *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !r.allow(clientID(req)) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (r *RateLimiter) allow(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.visitors[id]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(rate.Limit(r.limit.RequestsPerSecond), r.limit.Burst)}
		r.visitors[id] = entry
	}
	entry.lastSeen = r.now()
	return entry.limiter.Allow()
}

func (r *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := r.now().Add(-visitorTTL)
		r.mu.Lock()
		for id, entry := range r.visitors {
			if entry.lastSeen.Before(cutoff) {
				delete(r.visitors, id)
			}
		}
		r.mu.Unlock()
	}
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := forwarded
		if comma := strings.IndexByte(forwarded, ','); comma > 0 {
			first = forwarded[:comma]
		}
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
