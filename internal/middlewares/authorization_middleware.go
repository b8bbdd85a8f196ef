package middlewares

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"visionmatch/internal/models"
)

// RequireRole admits callers whose token carries one of roles.
// It must run after Authenticate.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Unauthorized"})
			return
		}
		r, _ := role.(string)
		if !slices.Contains(roles, models.Role(r)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "error", "message": "Access denied for role " + r})
			return
		}
		c.Next()
	}
}
