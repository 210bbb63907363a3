package middleware

import (
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/response"
)

const (
	// ContextOrgKey is the gin context key storing the resolved organization ID.
	ContextOrgKey = "currentOrg"
	// ContextRoleKey is the gin context key storing the caller's role within
	// the resolved organization. The JWT role is global; the membership role
	// is what authorization decisions use.
	ContextRoleKey = "currentOrgRole"
)

// MembershipLookup resolves a user's membership in an organization.
type MembershipLookup func(c *gin.Context, orgID, userID string) (*models.Membership, error)

// Tenant resolves the org_id query parameter and verifies the authenticated
// user belongs to that organization. Every org-scoped route runs behind it.
func Tenant(lookup MembershipLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Query("org_id")
		if orgID == "" {
			response.Error(c, appErrors.ErrOrgScope)
			c.Abort()
			return
		}

		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		membership, err := lookup(c, orgID, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not a member of this organization"))
			} else {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve membership"))
			}
			c.Abort()
			return
		}

		c.Set(ContextOrgKey, orgID)
		c.Set(ContextRoleKey, membership.Role)
		c.Next()
	}
}
