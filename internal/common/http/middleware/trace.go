package middleware

import (
	"context"
	"strings"

	"arena/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"

	// ids longer than this are replaced rather than echoed back
	maxIDLength = 128
)

// correlation ids are stored under the same key name in gin and the request context
var correlationIDs = []struct {
	header string
	key    contextkey.Key
}{
	{TraceIDHeader, contextkey.TraceID},
	{RequestIDHeader, contextkey.RequestID},
}

// TraceContextMiddleware propagates trace and request ids from the caller, or
// mints new ones, into the request context and the response headers.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, id := range correlationIDs {
			value := inboundID(c.GetHeader(id.header))
			c.Set(string(id.key), value)
			c.Writer.Header().Set(id.header, value)
			ctx = context.WithValue(ctx, id.key, value)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func inboundID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxIDLength {
		return uuid.NewString()
	}
	return raw
}
