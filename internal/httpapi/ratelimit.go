package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long a per-IP limiter survives without traffic.
const idleLimiterTTL = 10 * time.Minute

// ipRateLimiter is a token bucket per client IP: perMinute requests a
// minute, with bursts up to perMinute.
type ipRateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*ipEntry
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perMinute int, now func() time.Time) *ipRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if now == nil {
		now = time.Now
	}
	return &ipRateLimiter{
		entries: map[string]*ipEntry{},
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > idleLimiterTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e := l.entries[ip]
	if e == nil {
		e = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP reads RemoteAddr, which middleware.RealIP has already rewritten
// from proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
