package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tes-agency/portal/internal/api/respond"
	"github.com/tes-agency/portal/internal/audit"
	"github.com/tes-agency/portal/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	// TierAuth covers login, registration and key lookup, the endpoints a
	// key guesser would hammer.
	TierAuth RateLimitTier = "auth"
)

const (
	limiterTTL      = 15 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// RateLimiter keeps a token bucket per tier and client IP.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
	stop      chan struct{}
	stopOnce  sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts a background sweep of idle buckets; call Stop when
// done.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic: cfg.PublicPerMinute,
			TierAuth:   cfg.AuthPerMinute,
		},
		stop: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Limit rejects requests over the tier's budget with 429. A tier configured
// with zero requests per minute is unlimited.
func (l *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := l.limiter(tier, clientIP(r))
			if limiter == nil || limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter(l.perMinute[tier]))
			respond.Error(w, r, http.StatusTooManyRequests, "Too many requests", nil)
		})
	}
}

func (l *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := l.perMinute[tier]
	if limit <= 0 {
		return nil
	}
	lookup := string(tier) + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.limiters[lookup]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
	l.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func retryAfter(perMinute int) string {
	if perMinute <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(60 / float64(perMinute))))
}

func (l *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stop:
			return
		}
	}
}

func (l *RateLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterTTL {
			delete(l.limiters, key)
		}
	}
}

func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// ClientIP records the caller's address in the request context for rate
// limiting and audit entries. X-Forwarded-For and X-Real-IP are honored only
// when the connection comes from one of the trusted proxy networks.
func ClientIP(trustedProxyCIDRs []string) func(http.Handler) http.Handler {
	trusted := parseCIDRs(trustedProxyCIDRs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := audit.WithClientIP(r.Context(), resolveClientIP(r, trusted))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := audit.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return resolveClientIP(r, nil)
}

func resolveClientIP(r *http.Request, trusted []*net.IPNet) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trusted) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
			return realIP
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trusted []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range trusted {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		if _, network, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			nets = append(nets, network)
		}
	}
	return nets
}
