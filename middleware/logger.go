package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tienda-service/pkg/ctxmanage"
	"tienda-service/pkg/logkey"
)

// Logger assigns every request a trace id and logs the outcome with it. The
// trace id travels on the request context so handlers log under the same id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceId := uuid.NewString()
		ctx := ctxmanage.WithTraceId(c.Request.Context(), traceId)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		slog.Info("request completed",
			slog.String(logkey.TraceID, traceId),
			slog.String("Method", c.Request.Method),
			slog.String("Path", c.Request.URL.Path),
			slog.Int("Status", c.Writer.Status()),
			slog.Duration("Duration", time.Since(start)),
		)
	}
}
