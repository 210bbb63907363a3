package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/tutorium/intake-api/internal/models"
)

// IntakeRepository persists reconciliation transitions for intake candidates.
// Every transition is a conditional update keyed on the candidate's current
// state; a lost race surfaces as sql.ErrNoRows and is mapped to a conflict
// upstream.
type IntakeRepository struct {
	db *sqlx.DB
}

// NewIntakeRepository constructs an IntakeRepository.
func NewIntakeRepository(db *sqlx.DB) *IntakeRepository {
	return &IntakeRepository{db: db}
}

// ListPending returns candidates awaiting approval, optionally scoped to one
// instructor or to the unassigned bucket.
func (r *IntakeRepository) ListPending(ctx context.Context, filter models.IntakeFilter) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
        WHERE org_id = $1 AND needs_intake_approval = true AND intake_dismissed_at IS NULL`, studentColumns)
	args := []interface{}{filter.OrgID}

	switch filter.InstructorID {
	case "":
	case models.UnassignedInstructorFilter:
		query += " AND assigned_instructor_id IS NULL"
	default:
		query += " AND assigned_instructor_id = $2"
		args = append(args, filter.InstructorID)
	}
	query += " ORDER BY created_at ASC"

	var candidates []models.Student
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}
	return candidates, nil
}

// ListDismissed returns dismissed candidates, most recently dismissed first.
func (r *IntakeRepository) ListDismissed(ctx context.Context, orgID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
        WHERE org_id = $1 AND needs_intake_approval = true AND intake_dismissed_at IS NOT NULL
        ORDER BY intake_dismissed_at DESC`, studentColumns)
	var candidates []models.Student
	if err := r.db.SelectContext(ctx, &candidates, query, orgID); err != nil {
		return nil, fmt.Errorf("list dismissed candidates: %w", err)
	}
	return candidates, nil
}

// Assign sets the instructor and persists contact-field edits in one write.
// It never clears an existing assignment.
func (r *IntakeRepository) Assign(ctx context.Context, orgID, studentID, instructorID, name, contactName, contactPhone string) (*models.Student, error) {
	query := fmt.Sprintf(`UPDATE students
        SET assigned_instructor_id = $3,
            name = CASE WHEN $4 <> '' THEN $4 ELSE name END,
            contact_name = CASE WHEN $5 <> '' THEN $5 ELSE contact_name END,
            contact_phone = CASE WHEN $6 <> '' THEN $6 ELSE contact_phone END,
            updated_at = $7
        WHERE id = $1 AND org_id = $2 AND needs_intake_approval = true
        RETURNING %s`, studentColumns)
	var student models.Student
	err := r.db.GetContext(ctx, &student, query, studentID, orgID, instructorID, name, contactName, contactPhone, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// Approve flips needs_intake_approval off. Only a pending, assigned
// candidate can be approved.
func (r *IntakeRepository) Approve(ctx context.Context, orgID, studentID string) (*models.Student, error) {
	query := fmt.Sprintf(`UPDATE students
        SET needs_intake_approval = false, active = true, updated_at = $3
        WHERE id = $1 AND org_id = $2 AND needs_intake_approval = true
          AND intake_dismissed_at IS NULL AND assigned_instructor_id IS NOT NULL
        RETURNING %s`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID, orgID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &student, nil
}

// Dismiss stamps the dismissal timestamp on a pending candidate.
func (r *IntakeRepository) Dismiss(ctx context.Context, orgID, studentID string) (*models.Student, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`UPDATE students
        SET intake_dismissed_at = $3, updated_at = $3
        WHERE id = $1 AND org_id = $2 AND needs_intake_approval = true AND intake_dismissed_at IS NULL
        RETURNING %s`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID, orgID, now); err != nil {
		return nil, err
	}
	return &student, nil
}

// Restore clears the dismissal timestamp, returning the candidate to the
// pending queue with all other fields untouched.
func (r *IntakeRepository) Restore(ctx context.Context, orgID, studentID string) (*models.Student, error) {
	query := fmt.Sprintf(`UPDATE students
        SET intake_dismissed_at = NULL, updated_at = $3
        WHERE id = $1 AND org_id = $2 AND needs_intake_approval = true AND intake_dismissed_at IS NOT NULL
        RETURNING %s`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentID, orgID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &student, nil
}

// Merge applies the resolved payload to the target, reassigns the source's
// documents and session reports, and deletes the source, all in one
// transaction. The source must still be a pending candidate.
func (r *IntakeRepository) Merge(ctx context.Context, orgID, sourceID, targetID string, payload models.MergePayload) (*models.MergeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin merge tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var source models.Student
	lockSource := fmt.Sprintf(`SELECT %s FROM students
        WHERE id = $1 AND org_id = $2 AND needs_intake_approval = true FOR UPDATE`, studentColumns)
	if err := tx.GetContext(ctx, &source, lockSource, sourceID, orgID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updateTarget := fmt.Sprintf(`UPDATE students
        SET name = $3, national_id = $4, contact_name = $5, contact_phone = $6,
            assigned_instructor_id = $7, notes = $8, tags = $9, updated_at = $10
        WHERE id = $1 AND org_id = $2
        RETURNING %s`, studentColumns)
	var target models.Student
	err = tx.GetContext(ctx, &target, updateTarget, targetID, orgID,
		payload.Name, payload.NationalID, payload.ContactName, payload.ContactPhone,
		payload.AssignedInstructorID, payload.Notes, pq.StringArray(payload.Tags), now)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET student_id = $3 WHERE org_id = $1 AND student_id = $2`,
		orgID, sourceID, targetID); err != nil {
		return nil, fmt.Errorf("reassign documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE session_reports SET student_id = $3 WHERE org_id = $1 AND student_id = $2`,
		orgID, sourceID, targetID); err != nil {
		return nil, fmt.Errorf("reassign session reports: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1 AND org_id = $2`, sourceID, orgID)
	if err != nil {
		return nil, fmt.Errorf("retire merge source: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge tx: %w", err)
	}

	source.NeedsIntakeApproval = false
	source.IntakeDismissedAt = &now
	return &models.MergeResult{Source: &source, Target: &target}, nil
}
