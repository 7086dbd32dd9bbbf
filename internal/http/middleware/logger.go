package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request. Webhook handlers enrich the request
// context, so delivery fields show up here too.
//
// Only the path is logged. No route takes a query string, and GitHub
// deliveries never send one, so anything there is noise from scanners.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		ctx := c.Request.Context()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if hook := c.GetHeader("X-GitHub-Hook-ID"); hook != "" {
			attrs = append(attrs, "github_hook_id", hook)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request error", attrs...)
		case probe(c.Request.URL.Path):
			slog.DebugContext(ctx, "request", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}

// probe reports liveness routes, polled by orchestrators every few seconds.
func probe(path string) bool {
	return path == "/" || path == "/health"
}
