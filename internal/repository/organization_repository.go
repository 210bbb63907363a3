package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/tutorium/intake-api/internal/models"
)

// OrganizationRepository resolves tenants and membership.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs an OrganizationRepository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// FindByID fetches an organization by ID.
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	const query = `SELECT id, name, active, created_at, updated_at FROM organizations WHERE id = $1`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, err
	}
	return &org, nil
}

// MembershipFor returns the user's membership in the organization, when any.
// Every org-scoped request passes through this lookup.
func (r *OrganizationRepository) MembershipFor(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	const query = `SELECT id, org_id, user_id, role, created_at FROM memberships WHERE org_id = $1 AND user_id = $2`
	var membership models.Membership
	if err := r.db.GetContext(ctx, &membership, query, orgID, userID); err != nil {
		return nil, err
	}
	return &membership, nil
}
