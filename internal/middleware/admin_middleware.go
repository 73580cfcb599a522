package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminKeyHeader carries the shared admin secret.
const AdminKeyHeader = "X-Admin-Key"

// AdminMiddleware gates the admin surface behind a shared-secret header.
type AdminMiddleware struct {
	adminKey string
}

func NewAdminMiddleware(adminKey string) *AdminMiddleware {
	return &AdminMiddleware{adminKey: adminKey}
}

// RequireAdminKey rejects requests whose admin key header does not match the
// configured secret. Comparison is constant-time.
func (m *AdminMiddleware) RequireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(AdminKeyHeader)
		if m.adminKey == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(m.adminKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
