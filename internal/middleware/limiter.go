package middleware

import (
	"net/http"
	"sync"

	"github.com/haierkeys/fast-note-anchor/pkg/app"
	"github.com/haierkeys/fast-note-anchor/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/juju/ratelimit"
)

// IPLimiter 按客户端 IP 分配令牌桶
type IPLimiter struct {
	rate  float64
	burst int64

	mu      sync.Mutex
	buckets map[string]*ratelimit.Bucket
}

// NewIPLimiter rate <= 0 时不限流
func NewIPLimiter(rate float64, burst int64) *IPLimiter {
	if burst <= 0 {
		burst = int64(rate) + 1
	}
	return &IPLimiter{rate: rate, burst: burst, buckets: make(map[string]*ratelimit.Bucket)}
}

// Key 限流键
func (l *IPLimiter) Key(c *gin.Context) string {
	return app.GetRequestIP(c)
}

// GetBucket 获取（或创建）该键的令牌桶
func (l *IPLimiter) GetBucket(key string) (*ratelimit.Bucket, bool) {
	if l == nil || l.rate <= 0 {
		return nil, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = ratelimit.NewBucketWithRate(l.rate, l.burst)
		l.buckets[key] = bucket
	}
	return bucket, true
}

// RateLimiter creates rate limiting middleware (supports dependency injection)
// RateLimiter 创建限流中间件（支持依赖注入）
func RateLimiter(l *IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := l.Key(c)
		if bucket, ok := l.GetBucket(key); ok {
			count := bucket.TakeAvailable(1)
			if count == 0 {
				response := app.NewResponse(c)
				response.ToResponse(code.ErrorTooManyRequests.WithHTTPStatus(http.StatusTooManyRequests))
				c.Abort()
				return
			}
		}

		c.Next()
	}
}
