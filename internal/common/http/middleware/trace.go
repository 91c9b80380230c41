package middleware

import (
	"context"
	"strings"

	"judgeboard/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"
	userIDHeader    = "X-User-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
	userIDContextKey    = "user_id"
)

// correlationID is one id carried from a request header into the gin and
// request contexts and echoed back on the response.
type correlationID struct {
	header   string
	ginKey   string
	ctxKey   contextkey.Key
	generate bool
}

var correlationIDs = []correlationID{
	{header: traceIDHeader, ginKey: traceIDContextKey, ctxKey: contextkey.TraceID, generate: true},
	{header: requestIDHeader, ginKey: requestIDContextKey, ctxKey: contextkey.RequestID, generate: true},
	{header: userIDHeader, ginKey: userIDContextKey, ctxKey: contextkey.UserID},
}

// TraceContextMiddleware adopts the trace, request and user ids of a request.
// Missing trace and request ids are generated; a missing user id stays unset.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, id := range correlationIDs {
			value := strings.TrimSpace(c.GetHeader(id.header))
			if value == "" {
				if !id.generate {
					continue
				}
				value = uuid.NewString()
			}
			c.Set(id.ginKey, value)
			ctx = context.WithValue(ctx, id.ctxKey, value)
			c.Writer.Header().Set(id.header, value)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
