package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP. A client that exceeds its
// budget is blocked for blockTime.
type RateLimiter struct {
	limiters  map[string]*clientLimiter
	blocked   map[string]time.Time
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	blockTime time.Duration
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleTTL is how long an unused client limiter is kept.
const idleTTL = 10 * time.Minute

// NewRateLimiter creates a limiter. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int, blockTime time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		blocked:   make(map[string]time.Time),
		rps:       rate.Limit(rps),
		burst:     burst,
		blockTime: blockTime,
		lastSweep: time.Now(),
	}
}

func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	if l.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !l.allow(ip, time.Now()) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	if until, found := l.blocked[ip]; found {
		if now.Before(until) {
			return false
		}
		delete(l.blocked, ip)
	}

	c, ok := l.limiters[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = c
	}
	c.lastSeen = now

	if !c.limiter.AllowN(now, 1) {
		l.blocked[ip] = now.Add(l.blockTime)
		return false
	}
	return true
}

func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for ip, c := range l.limiters {
		if now.Sub(c.lastSeen) > idleTTL {
			delete(l.limiters, ip)
		}
	}
	for ip, until := range l.blocked {
		if now.After(until) {
			delete(l.blocked, ip)
		}
	}
}
