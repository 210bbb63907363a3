package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/response"
)

// RequirePermission gates a route on the caller's permission within the
// resolved organization. It runs after Tenant, which stores the membership
// role; authorization funnels through a single permission check rather than
// per-route role lists.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleValue, exists := c.Get(ContextRoleKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		role := roleValue.(models.UserRole)

		if !models.Authorize(role, perm) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
