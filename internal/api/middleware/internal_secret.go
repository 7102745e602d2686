package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const InternalSecretHeader = "X-Internal-Secret"

// InternalSecretMiddleware guards operator endpoints that enqueue background work.
func InternalSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(secret) == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"data":    nil,
				"message": "internal api secret is not configured",
			})
			return
		}
		// header only, so the secret never lands in access logs
		token := strings.TrimSpace(c.GetHeader(InternalSecretHeader))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"data":    nil,
				"message": "unauthorized",
			})
			return
		}
		c.Next()
	}
}
