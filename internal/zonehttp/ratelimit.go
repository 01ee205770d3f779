package zonehttp

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterPerIP keeps one token-bucket limiter per publishing client IP,
// created lazily and never evicted — a zone runs long enough that the
// bounded node population doesn't make this a meaningful leak.
type limiterPerIP struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newLimiterPerIP(rps float64, burst int) *limiterPerIP {
	return &limiterPerIP{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *limiterPerIP) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[ip] = lim
	}
	return lim
}

// PublishRateLimit returns middleware allowing at most rps publish requests
// per second per client IP, with burst as the initial allowance.
func PublishRateLimit(rps float64, burst int) gin.HandlerFunc {
	limiters := newLimiterPerIP(rps, burst)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "publish rate limit exceeded"})
			return
		}
		c.Next()
	}
}
