package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 3 * time.Minute
	limiterSweepInterval = time.Minute
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client IP. Idle buckets are swept
// lazily on access.
type RateLimiter struct {
	scope string
	r     rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(scope string, r rate.Limit, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		scope:     scope,
		r:         r,
		burst:     burst,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// PerMinute builds a limiter allowing n requests per minute with a burst of n.
func PerMinute(scope string, n int) *RateLimiter {
	if n < 1 {
		n = 1
	}
	return NewRateLimiter(scope, rate.Every(time.Minute/time.Duration(n)), n)
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.get(key).Allow()
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterSweepInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.seen) > limiterIdleTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	if v, ok := rl.visitors[key]; ok {
		v.seen = now
		return v.lim
	}
	lim := rate.NewLimiter(rl.r, rl.burst)
	rl.visitors[key] = &visitor{lim: lim, seen: now}
	return lim
}

func (rl *RateLimiter) Middleware(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			m.RateLimitedTotal.WithLabelValues(rl.scope).Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
