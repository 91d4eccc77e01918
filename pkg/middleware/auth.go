package middleware

import (
	"github.com/gin-gonic/gin"

	"affiliatehub/pkg/errutil"
)

const (
	// UserIDHeader carries the authenticated user identity, set by the
	// upstream auth proxy. The API trusts it as-is.
	UserIDHeader = "X-User-ID"

	userIDKey = "auth.user_id"
)

// RequireUser rejects requests without an authenticated user identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			_ = c.Error(errutil.Unauthorized("missing user identity", nil))
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
