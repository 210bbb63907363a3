package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

// nationalIDPattern matches the accepted national id format: digits only,
// 5 to 12 characters.
var nationalIDPattern = regexp.MustCompile(`^[0-9]{5,12}$`)

type studentStore interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Student, error)
	FindByNationalID(ctx context.Context, orgID, nationalID string, excludeID string) (*models.Student, error)
	SimilarByName(ctx context.Context, orgID, name string, limit int) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, orgID, id string) error
}

// DuplicateSuggestions is the informational duplicate-check result shown
// before a candidate is approved or created. A national-id hit is a hard
// signal; name matches are advisory only.
type DuplicateSuggestions struct {
	NationalIDMatch *models.Student  `json:"national_id_match,omitempty"`
	NameMatches     []models.Student `json:"name_matches"`
}

// StudentService manages the active roster.
type StudentService struct {
	repo            studentStore
	audit           auditLogger
	validator       *validator.Validate
	logger          *zap.Logger
	suggestionLimit int
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(repo studentStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger, suggestionLimit int) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if suggestionLimit <= 0 {
		suggestionLimit = 5
	}
	return &StudentService{repo: repo, audit: audit, validator: validate, logger: logger, suggestionLimit: suggestionLimit}
}

// List returns the roster page for the organization. Intake candidates are
// excluded unless status=all is requested.
func (s *StudentService) List(ctx context.Context, orgID string, actor Actor, query dto.StudentListQuery) ([]models.Student, *models.Pagination, error) {
	if !models.Authorize(actor.Role, models.PermStudentRead) {
		return nil, nil, appErrors.ErrForbidden
	}

	filter := models.StudentFilter{
		OrgID:     orgID,
		Search:    strings.TrimSpace(query.Search),
		Status:    query.Status,
		Active:    query.Active,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return students, pagination, nil
}

// Get returns one student by ID.
func (s *StudentService) Get(ctx context.Context, orgID string, actor Actor, id string) (*models.Student, error) {
	if !models.Authorize(actor.Role, models.PermStudentRead) {
		return nil, appErrors.ErrForbidden
	}
	student, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create adds a roster student directly. The national id, when present, must
// match the accepted format and be unique within the organization.
func (s *StudentService) Create(ctx context.Context, orgID string, actor Actor, req dto.CreateStudentRequest) (*models.Student, error) {
	if !models.Authorize(actor.Role, models.PermStudentWrite) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.checkNationalID(ctx, orgID, req.NationalID, ""); err != nil {
		return nil, err
	}

	student := &models.Student{
		ID:           uuid.NewString(),
		OrgID:        orgID,
		Name:         strings.TrimSpace(req.Name),
		NationalID:   req.NationalID,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Notes:        req.Notes,
		Tags:         req.Tags,
		Active:       true,
	}
	if req.AssignedInstructorID != "" {
		student.AssignedInstructorID = &req.AssignedInstructorID
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.emitAudit(ctx, orgID, actor, models.AuditActionStudentCreate, student.ID)
	return student, nil
}

// Update applies a partial update to a roster student. National-id changes go
// through the same format and uniqueness guard as creation.
func (s *StudentService) Update(ctx context.Context, orgID string, actor Actor, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if !models.Authorize(actor.Role, models.PermStudentWrite) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if req.NationalID != nil && *req.NationalID != student.NationalID {
		if err := s.checkNationalID(ctx, orgID, *req.NationalID, student.ID); err != nil {
			return nil, err
		}
		student.NationalID = *req.NationalID
	}
	if req.Name != nil {
		student.Name = strings.TrimSpace(*req.Name)
	}
	if req.ContactName != nil {
		student.ContactName = *req.ContactName
	}
	if req.ContactPhone != nil {
		student.ContactPhone = *req.ContactPhone
	}
	if req.Notes != nil {
		student.Notes = *req.Notes
	}
	if req.Tags != nil {
		student.Tags = *req.Tags
	}
	if req.AssignedInstructorID != nil {
		if *req.AssignedInstructorID == "" {
			student.AssignedInstructorID = nil
		} else {
			student.AssignedInstructorID = req.AssignedInstructorID
		}
	}

	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.emitAudit(ctx, orgID, actor, models.AuditActionStudentUpdate, student.ID)
	return student, nil
}

// Deactivate retires a student from the active roster.
func (s *StudentService) Deactivate(ctx context.Context, orgID string, actor Actor, id string) error {
	if !models.Authorize(actor.Role, models.PermStudentWrite) || !models.IsElevated(actor.Role) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Deactivate(ctx, orgID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.emitAudit(ctx, orgID, actor, models.AuditActionStudentUpdate, id)
	return nil
}

// Suggestions looks up possible existing matches for an intake candidate: an
// exact national-id hit elsewhere in the org, plus name-similar students. The
// result informs the approve-or-merge decision; it blocks nothing by itself.
func (s *StudentService) Suggestions(ctx context.Context, orgID string, actor Actor, studentID string) (*DuplicateSuggestions, error) {
	if !models.Authorize(actor.Role, models.PermIntakeView) {
		return nil, appErrors.ErrForbidden
	}

	candidate, err := s.repo.FindByID(ctx, orgID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}

	suggestions := &DuplicateSuggestions{NameMatches: []models.Student{}}

	if candidate.NationalID != "" {
		match, err := s.repo.FindByNationalID(ctx, orgID, candidate.NationalID, candidate.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
		}
		suggestions.NationalIDMatch = match
	}

	matches, err := s.repo.SimilarByName(ctx, orgID, candidate.Name, s.suggestionLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search similar names")
	}
	for _, m := range matches {
		if m.ID == candidate.ID {
			continue
		}
		suggestions.NameMatches = append(suggestions.NameMatches, m)
	}

	return suggestions, nil
}

func (s *StudentService) checkNationalID(ctx context.Context, orgID, nationalID, excludeID string) error {
	if nationalID == "" {
		return nil
	}
	if !nationalIDPattern.MatchString(nationalID) {
		return appErrors.Clone(appErrors.ErrValidation, "national id must be 5 to 12 digits")
	}
	existing, err := s.repo.FindByNationalID(ctx, orgID, nationalID, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
	}
	if existing != nil {
		return appErrors.ErrDuplicateNationalID
	}
	return nil
}

func (s *StudentService) emitAudit(ctx context.Context, orgID string, actor Actor, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		OrgID:      &orgID,
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "student",
		ResourceID: &resourceID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
