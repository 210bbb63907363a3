package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tutorium/intake-api/internal/middleware"
	"github.com/tutorium/intake-api/internal/models"
	"github.com/tutorium/intake-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func orgFromContext(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextOrgKey)
	if !exists {
		return ""
	}
	orgID, _ := value.(string)
	return orgID
}

// actorFromContext builds the service-layer actor from the request: JWT
// identity, the membership role resolved by the tenant middleware, and
// request metadata for the audit trail.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}, false
	}
	actor := service.Actor{
		UserID:    claims.UserID,
		Role:      claims.Role,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if value, exists := c.Get(middleware.ContextRoleKey); exists {
		if role, ok := value.(models.UserRole); ok {
			actor.Role = role
		}
	}
	return actor, true
}
