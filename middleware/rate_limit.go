package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// callWindow tracks calls from one client within the current window
type callWindow struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter enforces a fixed-window request cap per client key. It is
// in-process admission control for endpoints that guard shared, quota-limited
// resources (the alerts tick in particular).
type RateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*callWindow
	maxCalls     int
	windowPeriod time.Duration
}

// NewRateLimiter creates a rate limiter allowing maxCalls per windowPeriod
// for each client key
func NewRateLimiter(maxCalls int, windowPeriod time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:      make(map[string]*callWindow),
		maxCalls:     maxCalls,
		windowPeriod: windowPeriod,
	}
	go rl.startCleanup()
	return rl
}

// Allow records one call for key and reports whether it fits the window.
// Returns the remaining allowance and, when rejected, the wait until the
// window resets.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.windows[key]

	if !exists || now.Sub(window.FirstAt) > rl.windowPeriod {
		rl.windows[key] = &callWindow{Count: 1, FirstAt: now}
		return true, rl.maxCalls - 1, 0
	}

	if window.Count >= rl.maxCalls {
		return false, 0, rl.windowPeriod - now.Sub(window.FirstAt)
	}

	window.Count++
	return true, rl.maxCalls - window.Count, 0
}

// startCleanup periodically drops expired windows
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.cleanup()
	}
}

// cleanup removes expired entries
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, window := range rl.windows {
		if now.Sub(window.FirstAt) > rl.windowPeriod {
			delete(rl.windows, key)
		}
	}
}

// RateLimitMiddleware rejects requests beyond the per-client cap with 429
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, retryAfter := rl.Allow(c.ClientIP())

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": fmt.Sprintf("Too many requests. Try again in %d second(s).", int(retryAfter.Seconds())+1),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
