package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit (tokens added per second).
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed in a burst.
	Burst int
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client token-bucket limit on compile requests.
type RateLimiter struct {
	cfg   RateLimitConfig
	clock clock.Clock

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a limiter. Idle clients are dropped by Sweep.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &RateLimiter{cfg: cfg, clock: clk, clients: map[string]*clientLimiter{}}
}

func (l *RateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if cl, ok := l.clients[ip]; ok {
		cl.lastSeen = now
		return cl.limiter
	}
	lim := rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)
	l.clients[ip] = &clientLimiter{limiter: lim, lastSeen: now}
	return lim
}

// Sweep removes clients not seen for maxIdle and returns how many were removed.
func (l *RateLimiter) Sweep(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	removed := 0
	for ip, cl := range l.clients {
		if now.Sub(cl.lastSeen) > maxIdle {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// Handler rejects requests over the client's rate with 429 Too Many Requests.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := l.limiter(clientIP(r))
		now := l.clock.Now()

		reservation := lim.ReserveN(now, 1)
		if !reservation.OK() {
			writeTooManyRequests(w, 0)
			return
		}
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			writeTooManyRequests(w, int(delay.Seconds())+1)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(lim.TokensAt(now))))
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the remote host. X-Forwarded-For is ignored since clients
// can set it freely.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusTooManyRequests,
		"message": "rate limit exceeded",
	})
}
