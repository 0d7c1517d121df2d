package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter keyed by vendor identity (client IP
// for unauthenticated callers). It gates job-creation endpoints so one
// vendor cannot flood the queue.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*window
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &RateLimiter{
		limit:   requestsPerMinute,
		window:  time.Minute,
		buckets: make(map[string]*window),
	}
}

func (r *RateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	w, ok := r.buckets[key]
	if !ok || now.Sub(w.start) >= r.window {
		r.buckets[key] = &window{start: now, count: 1}
		return true
	}
	w.count++
	return w.count <= r.limit
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("vendor_id")
		if key == "" {
			key = c.ClientIP()
		}
		if !r.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
