package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type key int

const TraceIdKey key = 1

// WithTraceId stores a trace id in the context for the lifetime of a request.
func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}

// GetTraceIdOfRequest returns the trace id set by the logging middleware.
// A fresh id is generated if the middleware did not run for this request.
func GetTraceIdOfRequest(c *gin.Context) string {
	ctx := c.Request.Context()
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		traceId = uuid.NewString()
	}
	return traceId
}
