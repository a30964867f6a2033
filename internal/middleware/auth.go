package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/mo-task-monitor/internal/constants"
	apierrors "github.com/yukikurage/mo-task-monitor/internal/errors"
)

// RequireAuth checks if the user is authenticated via session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(constants.ContextKeyUserID)

		if userID == nil {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		// Store session values in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, userID)
		if username, ok := session.Get(constants.ContextKeyUsername).(string); ok {
			c.Set(constants.ContextKeyUsername, username)
		}
		isAdmin, _ := session.Get(constants.ContextKeyIsAdmin).(bool)
		c.Set(constants.ContextKeyIsAdmin, isAdmin)
		c.Next()
	}
}

// RequireAdmin rejects sessions without the admin flag. Use after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			apierrors.Forbidden(c, "Administrator access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// IsAdmin reports whether the current session belongs to an administrator
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(constants.ContextKeyIsAdmin)
}
