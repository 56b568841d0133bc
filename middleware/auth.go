package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CUknot/realty_crm/utils"
)

const (
	// SessionCookie carries the redis session id.
	SessionCookie = "session_id"
	// UserIDKey is the gin context key holding the authenticated user id.
	UserIDKey = "userID"
)

// SessionLookup resolves a session id to its user.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (uint, error)
}

// Auth authenticates the request from the session cookie, falling back to a
// bearer JWT in the Authorization header.
func Auth(sessions SessionLookup, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(SessionCookie); err == nil && id != "" && sessions != nil {
			if userID, err := sessions.Lookup(c.Request.Context(), id); err == nil {
				c.Set(UserIDKey, userID)
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader("Authorization")
		if tokenString, ok := strings.CutPrefix(authHeader, "Bearer "); ok && tokenString != "" {
			userID, err := utils.ParseToken(jwtSecret, tokenString)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.Set(UserIDKey, userID)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
}

// CurrentUserID returns the user set by Auth, or 0 when unauthenticated.
func CurrentUserID(c *gin.Context) uint {
	userID, _ := c.Get(UserIDKey)
	id, _ := userID.(uint)
	return id
}
