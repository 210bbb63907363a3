package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	"github.com/tutorium/intake-api/internal/service"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/response"
)

type instructorService interface {
	List(ctx context.Context, orgID string, actor service.Actor, query dto.InstructorListQuery) ([]models.Instructor, *models.Pagination, error)
	Get(ctx context.Context, orgID string, actor service.Actor, id string) (*models.Instructor, error)
	Create(ctx context.Context, orgID string, actor service.Actor, req dto.CreateInstructorRequest) (*models.Instructor, error)
	Update(ctx context.Context, orgID string, actor service.Actor, id string, req dto.UpdateInstructorRequest) (*models.Instructor, error)
	Deactivate(ctx context.Context, orgID string, actor service.Actor, id string) error
}

// InstructorHandler exposes instructor roster endpoints.
type InstructorHandler struct {
	service instructorService
}

// NewInstructorHandler constructs the handler.
func NewInstructorHandler(service instructorService) *InstructorHandler {
	return &InstructorHandler{service: service}
}

// List godoc
// @Summary List instructors
// @Tags Instructors
// @Produce json
// @Param org_id query string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *InstructorHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.InstructorListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	instructors, pagination, err := h.service.List(c.Request.Context(), orgFromContext(c), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, pagination)
}

// Get godoc
// @Summary Get one instructor
// @Tags Instructors
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id} [get]
func (h *InstructorHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	instructor, err := h.service.Get(c.Request.Context(), orgFromContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Create godoc
// @Summary Create an instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param payload body dto.CreateInstructorRequest true "Instructor payload"
// @Success 201 {object} response.Envelope
// @Router /instructors [post]
func (h *InstructorHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid instructor payload"))
		return
	}
	instructor, err := h.service.Create(c.Request.Context(), orgFromContext(c), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, instructor, nil)
}

// Update godoc
// @Summary Update an instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Instructor ID"
// @Param payload body dto.UpdateInstructorRequest true "Partial update"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id} [patch]
func (h *InstructorHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid instructor payload"))
		return
	}
	instructor, err := h.service.Update(c.Request.Context(), orgFromContext(c), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Deactivate godoc
// @Summary Deactivate an instructor
// @Tags Instructors
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Instructor ID"
// @Success 204 "No Content"
// @Router /instructors/{id} [delete]
func (h *InstructorHandler) Deactivate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), orgFromContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
