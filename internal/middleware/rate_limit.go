// Package middleware holds gin middleware shared by the HTTP surfaces.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter is a fixed-window in-process limiter keyed by client IP.
// State is process-local, which matches the single-instance deployment
// of this service.
type RateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*rateLimitEntry
	maxRequests int
	window      time.Duration
	logger      *zap.Logger
}

// NewRateLimiter creates a limiter allowing maxRequests per window
func NewRateLimiter(maxRequests int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		entries:     make(map[string]*rateLimitEntry),
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
	}
}

// Allow records one request for the identifier and reports whether it
// fits in the current window
func (r *RateLimiter) Allow(identifier string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[identifier]
	if !ok || now.After(entry.resetTime) {
		r.entries[identifier] = &rateLimitEntry{count: 1, resetTime: now.Add(r.window)}
		return true
	}

	if entry.count >= r.maxRequests {
		return false
	}
	entry.count++
	return true
}

// Remaining reports how many requests the identifier has left
func (r *RateLimiter) Remaining(identifier string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[identifier]
	if !ok || time.Now().After(entry.resetTime) {
		return r.maxRequests
	}
	remaining := r.maxRequests - entry.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Prune drops expired windows; called periodically to bound memory
func (r *RateLimiter) Prune() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.entries {
		if now.After(entry.resetTime) {
			delete(r.entries, id)
		}
	}
}

// Handler returns the gin middleware enforcing the limit
func (r *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !r.Allow(ip) {
			r.logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			c.Header("Retry-After", strconv.Itoa(int(r.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
