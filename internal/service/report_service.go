package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/export"
	"github.com/tutorium/intake-api/pkg/jobs"
	"github.com/tutorium/intake-api/pkg/storage"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, orgID, id string) (*models.ReportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath string) error
	MarkFailed(ctx context.Context, id, detail string) error
}

type hoursAggregator interface {
	InstructorHours(ctx context.Context, orgID string, from, to time.Time) ([]models.InstructorHours, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File     *os.File
	Filename string
	Format   models.ReportFormat
}

type reportJobPayload struct {
	OrgID string
	JobID string
}

// ReportService manages asynchronous instructor-hours exports. Jobs are
// rendered off-request by the worker queue; completed files are fetched
// through signed download tokens.
type ReportService struct {
	repo      reportJobStore
	sessions  hoursAggregator
	queue     jobDispatcher
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs the report service. The queue handler must be
// wired to Process.
func NewReportService(repo reportJobStore, sessions hoursAggregator, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{
		repo:      repo,
		sessions:  sessions,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		store:     store,
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
}

// SetQueue attaches the dispatcher. Separate from the constructor because
// the queue handler needs the service first.
func (s *ReportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob validates the request, persists a pending job, and enqueues it.
func (s *ReportService) CreateJob(ctx context.Context, orgID string, actor Actor, req dto.CreateReportJobRequest) (*dto.ReportJobResponse, error) {
	if !models.Authorize(actor.Role, models.PermReportRequest) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	if !req.To.After(req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be after from")
	}

	job := &models.ReportJob{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		Format:      req.Format,
		PeriodFrom:  req.From,
		PeriodTo:    req.To,
		Status:      models.ReportJobPending,
		RequestedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "instructor_hours", Payload: reportJobPayload{OrgID: orgID, JobID: job.ID}}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job"); markErr != nil {
			s.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return &dto.ReportJobResponse{Job: job}, nil
}

// GetJob returns job status; completed jobs carry a signed download URL.
func (s *ReportService) GetJob(ctx context.Context, orgID string, actor Actor, id string) (*dto.ReportJobResponse, error) {
	if !models.Authorize(actor.Role, models.PermReportRequest) {
		return nil, appErrors.ErrForbidden
	}
	job, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}

	resp := &dto.ReportJobResponse{Job: job}
	if job.Status == models.ReportJobCompleted && job.FilePath != "" {
		token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign download url", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			resp.DownloadURL = fmt.Sprintf("/reports/download?token=%s", token)
			resp.ExpiresAt = &expiresAt
		}
	}
	return resp, nil
}

// Download resolves a signed token to the rendered file.
func (s *ReportService) Download(ctx context.Context, orgID string, token string) (*ReportDownload, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportJobCompleted || job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report file is not available")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return &ReportDownload{File: file, Filename: relPath, Format: job.Format}, nil
}

// Process is the queue handler: it renders the export and stores the file.
func (s *ReportService) Process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(reportJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	// MarkRunning is conditional on PENDING status; losing the race means
	// another worker already owns the job.
	if err := s.repo.MarkRunning(ctx, payload.JobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	record, err := s.repo.FindByID(ctx, payload.OrgID, payload.JobID)
	if err != nil {
		return s.fail(ctx, payload.JobID, "failed to load job", err)
	}

	hours, err := s.sessions.InstructorHours(ctx, record.OrgID, record.PeriodFrom, record.PeriodTo)
	if err != nil {
		return s.fail(ctx, payload.JobID, "failed to aggregate hours", err)
	}

	dataset := hoursDataset(hours)
	var rendered []byte
	switch record.Format {
	case models.ReportFormatPDF:
		title := fmt.Sprintf("Instructor hours %s to %s", record.PeriodFrom.Format("2006-01-02"), record.PeriodTo.Format("2006-01-02"))
		rendered, err = s.pdf.Render(dataset, title)
	default:
		rendered, err = s.csv.Render(dataset)
	}
	if err != nil {
		return s.fail(ctx, payload.JobID, "failed to render export", err)
	}

	filename := fmt.Sprintf("instructor-hours-%s.%s", record.ID, record.Format)
	if _, err := s.store.Save(filename, rendered); err != nil {
		return s.fail(ctx, payload.JobID, "failed to store export", err)
	}

	if err := s.repo.MarkCompleted(ctx, payload.JobID, filename); err != nil {
		return err
	}
	s.logger.Info("report job completed",
		zap.String("job_id", payload.JobID),
		zap.String("format", string(record.Format)),
		zap.Int("rows", len(hours)))
	return nil
}

// StartCleanup removes expired rendered files on an interval until the
// context is cancelled.
func (s *ReportService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.store.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Warn("report cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("removed expired report files", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func (s *ReportService) fail(ctx context.Context, jobID, detail string, cause error) error {
	s.logger.Error("report job failed", zap.String("job_id", jobID), zap.String("detail", detail), zap.Error(cause))
	if err := s.repo.MarkFailed(ctx, jobID, detail); err != nil {
		s.logger.Warn("failed to mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return fmt.Errorf("%s: %w", detail, cause)
}

func hoursDataset(hours []models.InstructorHours) export.Dataset {
	rows := make([]map[string]string, 0, len(hours))
	for _, h := range hours {
		rows = append(rows, map[string]string{
			"Instructor":    h.InstructorName,
			"Sessions":      strconv.Itoa(h.SessionCount),
			"Total minutes": strconv.Itoa(h.TotalMinutes),
			"Total hours":   strconv.FormatFloat(h.TotalHours, 'f', 2, 64),
		})
	}
	return export.Dataset{
		Headers: []string{"Instructor", "Sessions", "Total minutes", "Total hours"},
		Rows:    rows,
	}
}
