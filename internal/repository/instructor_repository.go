package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorium/intake-api/internal/models"
)

// InstructorRepository manages persistence for the instructor roster.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs an InstructorRepository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// List returns instructors matching the provided filters.
func (r *InstructorRepository) List(ctx context.Context, orgID string, filter models.InstructorFilter) ([]models.Instructor, int, error) {
	base := "FROM instructors i"
	conditions := []string{"i.org_id = $1"}
	args := []interface{}{orgID}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("i.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(i.full_name) LIKE $%d OR LOWER(i.email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT i.id, i.org_id, i.user_id, i.full_name, i.email, i.phone, i.active, i.created_at, i.updated_at
        %s ORDER BY i.full_name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(i.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}
	return instructors, total, nil
}

// FindByID fetches an instructor by ID within an organization.
func (r *InstructorRepository) FindByID(ctx context.Context, orgID, id string) (*models.Instructor, error) {
	const query = `SELECT id, org_id, user_id, full_name, email, phone, active, created_at, updated_at
        FROM instructors WHERE id = $1 AND org_id = $2`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id, orgID); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// FindByUserID resolves the instructor row belonging to a user account.
func (r *InstructorRepository) FindByUserID(ctx context.Context, orgID, userID string) (*models.Instructor, error) {
	const query = `SELECT id, org_id, user_id, full_name, email, phone, active, created_at, updated_at
        FROM instructors WHERE user_id = $1 AND org_id = $2`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, userID, orgID); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// ExistsInOrg reports whether the instructor belongs to the organization,
// active or not. Assignment only requires the instructor to be known.
func (r *InstructorRepository) ExistsInOrg(ctx context.Context, orgID, id string) (bool, error) {
	const query = `SELECT 1 FROM instructors WHERE id = $1 AND org_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id, orgID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check instructor: %w", err)
	}
	return true, nil
}

// Create inserts a new instructor record.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instructor.CreatedAt.IsZero() {
		instructor.CreatedAt = now
	}
	instructor.UpdatedAt = now
	const query = `INSERT INTO instructors (id, org_id, user_id, full_name, email, phone, active, created_at, updated_at)
        VALUES (:id, :org_id, :user_id, :full_name, :email, :phone, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}
	return nil
}

// Update modifies an existing instructor.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructors SET full_name = :full_name, email = :email, phone = :phone,
        active = :active, updated_at = :updated_at WHERE id = :id AND org_id = :org_id`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("update instructor: %w", err)
	}
	return nil
}

// Deactivate marks an instructor inactive without touching assignments.
func (r *InstructorRepository) Deactivate(ctx context.Context, orgID, id string) error {
	const query = `UPDATE instructors SET active = false, updated_at = $3 WHERE id = $1 AND org_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate instructor: %w", err)
	}
	return nil
}
