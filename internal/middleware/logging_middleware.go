package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger returns a gin.HandlerFunc (middleware) that logs requests using zap.
// It logs the incoming request method, path, status code, latency, client IP,
// request id, query parameters, and any errors attached to the gin context.
// The result is logged at Error for 5xx, Warn for 4xx and Info otherwise.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		// The logger is required; there is no silent fallback.
		panic("RequestLogger requires a non-nil zap.Logger instance")
	}
	return func(c *gin.Context) {
		start := time.Now() // request start, used for latency

		// Copied before c.Next so later handlers cannot change them.
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Run the rest of the chain first; status and latency are only
		// known once it returns.
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		// Base fields for every request line.
		logFields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", statusCode),
			zap.Duration("latency", latency),
			zap.String("client_ip", clientIP),
			zap.String("request_id", c.GetString(ContextRequestID)),
		}
		// user_id is present only on routes behind the auth middleware.
		if uid := c.GetString(ContextUserID); uid != "" {
			logFields = append(logFields, zap.String("user_id", uid))
		}

		if query != "" {
			logFields = append(logFields, zap.String("query", query))
		}

		// Errors handlers attached with c.Error, joined into one string.
		if len(c.Errors) > 0 {
			logFields = append(logFields, zap.String("gin_errors", c.Errors.String()))
		}

		switch {
		case statusCode >= http.StatusInternalServerError: // 500 and above
			logger.Error("Incoming Request", logFields...)
		case statusCode >= http.StatusBadRequest: // 400 to 499
			logger.Warn("Incoming Request", logFields...)
		default: // 1xx, 2xx, 3xx
			logger.Info("Incoming Request", logFields...)
		}
	}
}
