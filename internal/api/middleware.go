package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nekogravitycat/reservation-engine/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger attaches a request-scoped slog logger to the request context
// and logs each completed request.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	if base == nil {
		base = slog.Default()
	}

	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		logger := base.With(
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		ctx := logging.ContextWithLogger(c.Request.Context(), logger)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{"status", status, "duration", time.Since(start)}
		switch {
		case status >= 500:
			logger.ErrorContext(ctx, "request completed", attrs...)
		case status >= 400:
			logger.WarnContext(ctx, "request completed", attrs...)
		default:
			logger.InfoContext(ctx, "request completed", attrs...)
		}
	}
}
