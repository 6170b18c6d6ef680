package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/shared/auth"
	"wasteops-backend/internal/shared/config"
	"wasteops-backend/internal/shared/server/respond"
)

const (
	staffIDKey   = "staffId"
	staffNameKey = "staffName"
)

// Auth validates staff JWTs and stores the identity in context. In dev-like
// environments the X-Staff-Id and X-Staff-Name headers are accepted instead.
func Auth(env string) gin.HandlerFunc {
	devLike := config.IsDevLike(env)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))

		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			if token == "" {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			claims, err := auth.VerifyJWT(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}

			c.Set(staffIDKey, claims.Sub)
			if claims.Name != "" {
				c.Set(staffNameKey, claims.Name)
			}
			c.Next()
			return
		}

		staffID := strings.TrimSpace(c.GetHeader("X-Staff-Id"))
		if !devLike || staffID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(staffIDKey, staffID)
		if name := strings.TrimSpace(c.GetHeader("X-Staff-Name")); name != "" {
			c.Set(staffNameKey, name)
		}
		c.Next()
	}
}

// StaffIDFromContext fetches the staff ID set by the auth middleware.
func StaffIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(staffIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// StaffNameFromContext fetches the staff display name set by the auth middleware.
func StaffNameFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(staffNameKey)
	if name, ok := val.(string); ok {
		return name
	}
	return ""
}
