package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds request throughput per client IP.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// staleAfter is how long an idle client keeps its token bucket.
const staleAfter = time.Hour

// RateLimit throttles each client IP with its own token bucket.
// Rejected requests get 429 with a Retry-After hint. Buckets idle for
// over an hour are swept once the map grows past a thousand entries,
// so churning clients cannot grow it without bound.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	type bucket struct {
		limiter *rate.Limiter
		seen    time.Time
	}

	var mu sync.Mutex
	buckets := make(map[string]*bucket)

	return func(c *gin.Context) {
		now := time.Now()

		mu.Lock()
		if len(buckets) > 1024 {
			for ip, b := range buckets {
				if now.Sub(b.seen) > staleAfter {
					delete(buckets, ip)
				}
			}
		}
		b, ok := buckets[c.ClientIP()]
		if !ok {
			b = &bucket{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			buckets[c.ClientIP()] = b
		}
		b.seen = now
		mu.Unlock()

		if !b.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
			})
			return
		}
		c.Next()
	}
}
