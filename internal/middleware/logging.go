package middleware

import (
	"net/http"
	"time"

	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/gin-gonic/gin"
)

// AccessLog writes one line per request, with the trace id when the request
// carries one.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		log := logger.FromContext(c.Request.Context())
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("type", "access").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("user_agent", c.Request.UserAgent()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recover turns a panic into a 500 and logs it.
func Recover() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context()).Error().
			Str("type", "panic").
			Str("path", c.Request.URL.Path).
			Interface("error", recovered).
			Msg("request panicked")
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
