package middleware

import (
	"net/http"
	"time"

	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation ID in both directions
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// requestID returns the caller's correlation ID when it is usable, otherwise a new one
func requestID(c *gin.Context) string {
	if id := c.GetHeader(RequestIDHeader); id != "" && len(id) <= maxRequestIDLength {
		return id
	}
	return uuid.NewString()
}

// RequestLogger logs one line per request. 5xx responses are logged at error level with the
// errors handlers attached to the gin context.
func RequestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := requestID(c)
		c.Request = c.Request.WithContext(contextutils.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": contextutils.GetRequestIDFromContext(c.Request.Context()),
		}
		if route := c.FullPath(); route != "" {
			fields["route"] = route
		}
		if id, ok := CurrentUserID(c); ok {
			fields["user_id"] = id
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			var err error
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			logger.Error(ctx, "Request failed", err, fields)
		case status >= http.StatusBadRequest:
			if msg := c.Errors.String(); msg != "" {
				fields["errors"] = msg
			}
			logger.Warn(ctx, "Request rejected", fields)
		default:
			logger.Info(ctx, "Request handled", fields)
		}
	}
}
