package middleware

import (
	"net/http"
	"runtime/debug" // stack trace of the panicking goroutine

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware returns a gin.HandlerFunc (middleware)
// that recovers from any panics within a handler, logs the panic with a stack trace,
// and returns a generic 500 Internal Server Error response to the client.
// A panic in one request never takes the server down.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		panic("RecoveryMiddleware requires a non-nil zap.Logger instance")
	}
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// debug.Stack here is taken inside the deferred call, so it
				// still shows the frames that panicked.
				logger.Error("Panic recovered",
					zap.Any("error", err), // the recovered value
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.String("request_id", c.GetString(ContextRequestID)), // ties the panic to the request log line
				)

				// Only write a body if the handler had not started one;
				// otherwise gin reports "multiple response.WriteHeader calls".
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
				}

				// Stop any handlers still queued after the one that panicked.
				c.Abort()
			}
		}()

		// A panic anywhere downstream unwinds into the deferred recover above.
		c.Next()
	}
}
