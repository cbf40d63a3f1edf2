package middleware

import (
	"net/http" // HTTP status codes
	"slices"   // Role lookup

	"github.com/gin-gonic/gin" // Gin web framework
)

// RequireRoles lets the request through only when the token's role is one of roles
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleKey) // Get role from context
		// Check if role was set by the JWT middleware
		if role == "" {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		// Check if role is allowed
		if !slices.Contains(roles, role) {
			// If not, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
			return
		}
		// If allowed, proceed to the next handler
		c.Next()
	}
}
