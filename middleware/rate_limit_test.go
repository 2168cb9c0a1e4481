package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowWithinWindow(t *testing.T) {
	rl := NewRateLimiter(4, time.Minute)

	for i := 0; i < 4; i++ {
		allowed, remaining, _ := rl.Allow("client-a")
		assert.True(t, allowed, "call %d should pass", i+1)
		assert.Equal(t, 3-i, remaining)
	}

	allowed, _, retryAfter := rl.Allow("client-a")
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	allowed, _, _ := rl.Allow("client-a")
	assert.True(t, allowed)
	allowed, _, _ = rl.Allow("client-a")
	assert.False(t, allowed)

	allowed, _, _ = rl.Allow("client-b")
	assert.True(t, allowed)
}

func TestRateLimiterWindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	allowed, _, _ := rl.Allow("client-a")
	assert.True(t, allowed)
	allowed, _, _ = rl.Allow("client-a")
	assert.False(t, allowed)

	time.Sleep(30 * time.Millisecond)

	allowed, _, _ = rl.Allow("client-a")
	assert.True(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/limited", RateLimitMiddleware(NewRateLimiter(2, time.Minute)), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	code := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, code())
	assert.Equal(t, http.StatusOK, code())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
