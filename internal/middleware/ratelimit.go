package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	RPS   float64 // non-positive disables limiting
	Burst int
	// TrustedProxyHops is the number of proxies in front of the service that
	// append to X-Forwarded-For. Zero ignores the header; Cloud Run is 1.
	TrustedProxyHops int
}

// RateLimit returns middleware allowing each client opts.RPS requests per
// second with the given burst. Clients are keyed by their IP as reported by
// the trusted proxies, else the remote address.
func RateLimit(opts RateLimitOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	rps, burst, hops := opts.RPS, opts.Burst, opts.TrustedProxyHops
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiters := newLimiterSet(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r, hops)
			if !limiters.get(key).Allow() {
				logger.Warn("rate limited", slog.String("client", key), slog.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > idleLimiterTTL {
		for k, e := range s.clients {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// clientKey picks the X-Forwarded-For entry written by the outermost trusted
// proxy; entries to its left are client-supplied and ignored. With no trusted
// proxies, or no usable entry, the remote address is used.
func clientKey(r *http.Request, trustedHops int) string {
	if trustedHops > 0 {
		var hops []string
		for _, h := range r.Header.Values("X-Forwarded-For") {
			for _, part := range strings.Split(h, ",") {
				hops = append(hops, strings.TrimSpace(part))
			}
		}
		if i := len(hops) - trustedHops; i >= 0 && net.ParseIP(hops[i]) != nil {
			return hops[i]
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
