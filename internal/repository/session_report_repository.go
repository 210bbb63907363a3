package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorium/intake-api/internal/models"
)

// SessionReportRepository manages persistence for session reports.
type SessionReportRepository struct {
	db *sqlx.DB
}

// NewSessionReportRepository constructs a SessionReportRepository.
func NewSessionReportRepository(db *sqlx.DB) *SessionReportRepository {
	return &SessionReportRepository{db: db}
}

// Create inserts a new session report.
func (r *SessionReportRepository) Create(ctx context.Context, report *models.SessionReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	const query = `INSERT INTO session_reports (id, org_id, student_id, instructor_id, session_date, duration_minutes, notes, created_at, updated_at)
        VALUES (:id, :org_id, :student_id, :instructor_id, :session_date, :duration_minutes, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create session report: %w", err)
	}
	return nil
}

// List returns session reports matching the filter.
func (r *SessionReportRepository) List(ctx context.Context, filter models.SessionReportFilter) ([]models.SessionReport, int, error) {
	base := "FROM session_reports r WHERE r.org_id = $1"
	args := []interface{}{filter.OrgID}

	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND r.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.InstructorID != "" {
		base += fmt.Sprintf(" AND r.instructor_id = $%d", len(args)+1)
		args = append(args, filter.InstructorID)
	}
	if filter.From != nil {
		base += fmt.Sprintf(" AND r.session_date >= $%d", len(args)+1)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		base += fmt.Sprintf(" AND r.session_date <= $%d", len(args)+1)
		args = append(args, *filter.To)
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

	query := fmt.Sprintf(`SELECT r.id, r.org_id, r.student_id, r.instructor_id, r.session_date, r.duration_minutes, r.notes, r.created_at, r.updated_at
        %s ORDER BY r.session_date DESC LIMIT %d OFFSET %d`, base, size, offset)

	var reports []models.SessionReport
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list session reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(r.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count session reports: %w", err)
	}
	return reports, total, nil
}

// InstructorHours aggregates reported minutes per instructor over a period.
func (r *SessionReportRepository) InstructorHours(ctx context.Context, orgID string, from, to time.Time) ([]models.InstructorHours, error) {
	const query = `SELECT r.instructor_id, i.full_name AS instructor_name,
        COUNT(r.id) AS session_count, COALESCE(SUM(r.duration_minutes), 0) AS total_minutes
        FROM session_reports r
        JOIN instructors i ON i.id = r.instructor_id
        WHERE r.org_id = $1 AND r.session_date >= $2 AND r.session_date <= $3
        GROUP BY r.instructor_id, i.full_name
        ORDER BY i.full_name ASC`
	var rows []models.InstructorHours
	if err := r.db.SelectContext(ctx, &rows, query, orgID, from, to); err != nil {
		return nil, fmt.Errorf("aggregate instructor hours: %w", err)
	}
	for i := range rows {
		rows[i].TotalHours = float64(rows[i].TotalMinutes) / 60.0
	}
	return rows, nil
}
