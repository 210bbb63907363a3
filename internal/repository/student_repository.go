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

const studentColumns = `id, org_id, name, national_id, contact_name, contact_phone, notes, tags,
        assigned_instructor_id, needs_intake_approval, intake_dismissed_at, intake_responses,
        active, created_at, updated_at`

// StudentRepository manages persistence for student and candidate records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters. Status "all" includes
// intake candidates; the default roster view excludes them.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	conditions := []string{"s.org_id = $1"}
	args := []interface{}{filter.OrgID}

	if filter.Status != "all" {
		conditions = append(conditions, "s.needs_intake_approval = false")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR s.national_id LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":        "s.name",
		"national_id": "s.national_id",
		"created_at":  "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		prefixColumns(studentColumns, "s"), base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(s.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID within an organization.
func (r *StudentRepository) FindByID(ctx context.Context, orgID, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1 AND org_id = $2`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, orgID); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByNationalID returns the student holding the given national ID, if any.
func (r *StudentRepository) FindByNationalID(ctx context.Context, orgID, nationalID string, excludeID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE org_id = $1 AND national_id = $2", studentColumns)
	args := []interface{}{orgID, nationalID}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query+" LIMIT 1", args...); err != nil {
		return nil, err
	}
	return &student, nil
}

// SimilarByName returns roster students whose normalized name contains the
// given fragment, for duplicate review while typing.
func (r *StudentRepository) SimilarByName(ctx context.Context, orgID, name string, limit int) ([]models.Student, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s FROM students
        WHERE org_id = $1 AND LOWER(name) LIKE $2
        ORDER BY name ASC LIMIT %d`, studentColumns, limit)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, orgID, "%"+strings.ToLower(strings.TrimSpace(name))+"%"); err != nil {
		return nil, fmt.Errorf("similar students: %w", err)
	}
	return students, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, org_id, name, national_id, contact_name, contact_phone, notes, tags,
        assigned_instructor_id, needs_intake_approval, intake_dismissed_at, intake_responses, active, created_at, updated_at)
        VALUES (:id, :org_id, :name, :national_id, :contact_name, :contact_phone, :notes, :tags,
        :assigned_instructor_id, :needs_intake_approval, :intake_dismissed_at, :intake_responses, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, national_id = :national_id, contact_name = :contact_name,
        contact_phone = :contact_phone, notes = :notes, tags = :tags, assigned_instructor_id = :assigned_instructor_id,
        active = :active, updated_at = :updated_at
        WHERE id = :id AND org_id = :org_id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, orgID, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $3 WHERE id = $1 AND org_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, orgID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, alias+"."+strings.TrimSpace(part))
	}
	return strings.Join(out, ", ")
}
