package middleware

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
)

// Context keys set by AuthMiddleware.
const (
	UserContextKey = "userID"
	RoleContextKey = "role"
)

// RoleAdmin is the role allowed on /api/admin routes.
const RoleAdmin = "admin"

// AuthMiddleware reads identity headers injected by the API gateway.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		role := c.GetHeader("X-User-Role")

		// Fallback to cookies (set by API gateway) if headers missing
		if userID == "" {
			if v, err := c.Cookie("user_id"); err == nil && v != "" {
				userID = v
			}
		}
		if role == "" {
			if v, err := c.Cookie("user_role"); err == nil && v != "" {
				role = v
			}
		}

		if userID == "" {
			c.AbortWithStatusJSON(apperrors.ErrUnauthorized.Code, apperrors.ErrUnauthorized)
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

// AdminOnly restricts access to admin role.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(apperrors.ErrForbidden.Code, apperrors.New(apperrors.ErrForbidden.Code, apperrors.KindForbidden, "Admin role required", nil))
			return
		}
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserContextKey)
}

// IsAdmin reports whether the caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString(RoleContextKey) == RoleAdmin
}
