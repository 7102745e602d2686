package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIDHeader links an HTTP request to the tasks and notifications it causes.
const CorrelationIDHeader = "X-Correlation-ID"

const maxCorrelationIDLength = 64

type correlationKey struct{}

// CorrelationIDMiddleware adopts a well-formed X-Correlation-ID from the caller and mints a
// UUID otherwise. The id is echoed back and stored on both the gin and the request context.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), correlationKey{}, id))
		c.Header(CorrelationIDHeader, id)

		c.Next()
	}
}

// GetCorrelationID returns the id assigned by CorrelationIDMiddleware, or "".
func GetCorrelationID(c *gin.Context) string {
	if id := c.GetString(CorrelationIDHeader); id != "" {
		return id
	}
	return CorrelationIDFromContext(c.Request.Context())
}

// CorrelationIDFromContext reads the id from a request context.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// validCorrelationID accepts short tokens of letters, digits, '-', '_' and '.'.
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
