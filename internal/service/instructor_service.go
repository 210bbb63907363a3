package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type instructorStore interface {
	List(ctx context.Context, orgID string, filter models.InstructorFilter) ([]models.Instructor, int, error)
	FindByID(ctx context.Context, orgID, id string) (*models.Instructor, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
	Deactivate(ctx context.Context, orgID, id string) error
}

// InstructorService manages the instructor roster.
type InstructorService struct {
	repo      instructorStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorService constructs an InstructorService instance.
func NewInstructorService(repo instructorStore, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InstructorService{repo: repo, validator: validate, logger: logger}
}

// List returns the instructor roster page for the organization.
func (s *InstructorService) List(ctx context.Context, orgID string, actor Actor, query dto.InstructorListQuery) ([]models.Instructor, *models.Pagination, error) {
	if !models.Authorize(actor.Role, models.PermInstructorRead) {
		return nil, nil, appErrors.ErrForbidden
	}

	filter := models.InstructorFilter{
		Search:    strings.TrimSpace(query.Search),
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

	instructors, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return instructors, pagination, nil
}

// Get returns one instructor by ID.
func (s *InstructorService) Get(ctx context.Context, orgID string, actor Actor, id string) (*models.Instructor, error) {
	if !models.Authorize(actor.Role, models.PermInstructorRead) {
		return nil, appErrors.ErrForbidden
	}
	instructor, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// Create adds an instructor to the organization.
func (s *InstructorService) Create(ctx context.Context, orgID string, actor Actor, req dto.CreateInstructorRequest) (*models.Instructor, error) {
	if !models.Authorize(actor.Role, models.PermRosterManage) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}

	instructor := &models.Instructor{
		ID:       uuid.NewString(),
		OrgID:    orgID,
		FullName: strings.TrimSpace(req.FullName),
		Email:    req.Email,
		Phone:    req.Phone,
		Active:   true,
	}
	if req.UserID != "" {
		instructor.UserID = &req.UserID
	}

	if err := s.repo.Create(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	return instructor, nil
}

// Update applies a partial update to an instructor.
func (s *InstructorService) Update(ctx context.Context, orgID string, actor Actor, id string, req dto.UpdateInstructorRequest) (*models.Instructor, error) {
	if !models.Authorize(actor.Role, models.PermRosterManage) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}

	instructor, err := s.repo.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	if req.FullName != nil {
		instructor.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		instructor.Email = *req.Email
	}
	if req.Phone != nil {
		instructor.Phone = *req.Phone
	}

	if err := s.repo.Update(ctx, instructor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "instructor was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return instructor, nil
}

// Deactivate retires an instructor. Existing assignments keep pointing at
// the retired row; new assignments will fail the membership check.
func (s *InstructorService) Deactivate(ctx context.Context, orgID string, actor Actor, id string) error {
	if !models.Authorize(actor.Role, models.PermRosterManage) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Deactivate(ctx, orgID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate instructor")
	}
	return nil
}
