package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftstack/mc-server-manager/internal/logging"
)

// CORS middleware adds CORS headers. The manager serves a local
// operator UI, so any origin is accepted.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		// Handle preflight requests
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Logger is a custom logging middleware
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		c.Writer.Header().Set("X-Response-Time", latency.String())

		if path != "/health" || gin.Mode() == gin.DebugMode {
			logging.L().Info("http_request",
				"method", c.Request.Method,
				"path", path,
				"status", c.Writer.Status(),
				"latency", latency.String(),
				"ip", c.ClientIP(),
			)
		}
	}
}
