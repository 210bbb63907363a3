package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type sessionReportStore interface {
	Create(ctx context.Context, report *models.SessionReport) error
	List(ctx context.Context, filter models.SessionReportFilter) ([]models.SessionReport, int, error)
	InstructorHours(ctx context.Context, orgID string, from, to time.Time) ([]models.InstructorHours, error)
}

// SessionReportService records delivered sessions and produces instructor
// hours aggregates. Only approved roster students can have sessions
// recorded against them.
type SessionReportService struct {
	repo        sessionReportStore
	students    candidateReader
	instructors instructorResolver
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionReportService constructs a SessionReportService instance.
func NewSessionReportService(repo sessionReportStore, students candidateReader, instructors instructorResolver, validate *validator.Validate, logger *zap.Logger) *SessionReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionReportService{repo: repo, students: students, instructors: instructors, validator: validate, logger: logger}
}

// Create records a session. Instructors record against their own identity;
// admin-tier callers may record on behalf of any instructor by supplying
// instructorID.
func (s *SessionReportService) Create(ctx context.Context, orgID string, actor Actor, instructorID string, req dto.CreateSessionReportRequest) (*models.SessionReport, error) {
	if !models.Authorize(actor.Role, models.PermSessionWrite) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session report payload")
	}

	if models.IsElevated(actor.Role) {
		if instructorID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "instructor_id is required")
		}
		known, err := s.instructors.ExistsInOrg(ctx, orgID, instructorID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify instructor")
		}
		if !known {
			return nil, appErrors.Clone(appErrors.ErrValidation, "instructor is not part of this organization")
		}
	} else {
		own, err := s.instructors.FindByUserID(ctx, orgID, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no instructor identity in this organization")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve instructor identity")
		}
		instructorID = own.ID
	}

	student, err := s.students.FindByID(ctx, orgID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if models.IntakeStateOf(student) != models.IntakeStateApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "sessions can only be recorded against approved students")
	}

	report := &models.SessionReport{
		ID:              uuid.NewString(),
		OrgID:           orgID,
		StudentID:       req.StudentID,
		InstructorID:    instructorID,
		SessionDate:     req.SessionDate,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session report")
	}
	return report, nil
}

// List returns session reports; instructors are scoped to their own.
func (s *SessionReportService) List(ctx context.Context, orgID string, actor Actor, query dto.SessionReportListQuery) ([]models.SessionReport, *models.Pagination, error) {
	filter := models.SessionReportFilter{
		OrgID:        orgID,
		StudentID:    query.StudentID,
		InstructorID: query.InstructorID,
		From:         query.From,
		To:           query.To,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	if !models.IsElevated(actor.Role) {
		own, err := s.instructors.FindByUserID(ctx, orgID, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return []models.SessionReport{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve instructor identity")
		}
		filter.InstructorID = own.ID
	}

	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list session reports")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return reports, pagination, nil
}

// InstructorHours aggregates reported time per instructor over a window.
// Admin-tier only; this feeds the payroll export.
func (s *SessionReportService) InstructorHours(ctx context.Context, orgID string, actor Actor, from, to time.Time) ([]models.InstructorHours, error) {
	if !models.Authorize(actor.Role, models.PermReportRequest) {
		return nil, appErrors.ErrForbidden
	}
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be after from")
	}
	hours, err := s.repo.InstructorHours(ctx, orgID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate instructor hours")
	}
	return hours, nil
}
