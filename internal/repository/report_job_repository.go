package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorium/intake-api/internal/models"
)

// ReportJobRepository tracks asynchronous export jobs.
type ReportJobRepository struct {
	db *sqlx.DB
}

// NewReportJobRepository constructs a ReportJobRepository.
func NewReportJobRepository(db *sqlx.DB) *ReportJobRepository {
	return &ReportJobRepository{db: db}
}

// Create inserts a new pending job.
func (r *ReportJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ReportJobPending
	}
	const query = `INSERT INTO report_jobs (id, org_id, format, period_from, period_to, status, file_path, error_detail, requested_by, created_at, completed_at)
        VALUES (:id, :org_id, :format, :period_from, :period_to, :status, :file_path, :error_detail, :requested_by, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID fetches a job by ID within an organization.
func (r *ReportJobRepository) FindByID(ctx context.Context, orgID, id string) (*models.ReportJob, error) {
	const query = `SELECT id, org_id, format, period_from, period_to, status, file_path, error_detail, requested_by, created_at, completed_at
        FROM report_jobs WHERE id = $1 AND org_id = $2`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id, orgID); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkRunning transitions a pending job to running.
func (r *ReportJobRepository) MarkRunning(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET status = $2 WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, models.ReportJobRunning, models.ReportJobPending)
	if err != nil {
		return fmt.Errorf("mark report job running: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkCompleted records the rendered file path.
func (r *ReportJobRepository) MarkCompleted(ctx context.Context, id, filePath string) error {
	const query = `UPDATE report_jobs SET status = $2, file_path = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportJobCompleted, filePath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job completed: %w", err)
	}
	return nil
}

// MarkFailed records the failure detail.
func (r *ReportJobRepository) MarkFailed(ctx context.Context, id, detail string) error {
	const query = `UPDATE report_jobs SET status = $2, error_detail = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportJobFailed, detail, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job failed: %w", err)
	}
	return nil
}
