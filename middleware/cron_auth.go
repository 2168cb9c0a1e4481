package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CronAuthMiddleware guards job endpoints with a shared secret supplied by
// the external scheduler, either as an x-cron-secret header or a ?secret=
// query parameter. With no secret configured the guard is a pass-through.
func CronAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("x-cron-secret")
		if provided == "" {
			provided = c.Query("secret")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Missing or invalid cron secret",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
