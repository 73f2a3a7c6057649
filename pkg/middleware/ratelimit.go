package middleware

import (
	"net/http"
	"sync"
	"time"

	"sms-support-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter creates a limiter allowing perSecond requests per IP with the given burst
func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow reports whether ip may make another request now
func (l *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Prune forgets clients idle for longer than ttl
func (l *IPRateLimiter) Prune(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
		}
	}
}

// RateLimitByIP rejects requests beyond the limiter's rate with 429
func RateLimitByIP(limiter *IPRateLimiter) gin.HandlerFunc {
	var (
		mu        sync.Mutex
		lastPrune = time.Now()
	)

	return func(c *gin.Context) {
		mu.Lock()
		if time.Since(lastPrune) > limiterIdleTTL {
			lastPrune = time.Now()
			mu.Unlock()
			limiter.Prune(limiterIdleTTL)
		} else {
			mu.Unlock()
		}

		ip := c.ClientIP()
		if !limiter.Allow(ip) {
			logger.Warn("Rate limit exceeded", zap.String("client_ip", ip), zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", "1")
			abort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}

		c.Next()
	}
}
