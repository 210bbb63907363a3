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

type intakeService interface {
	ListQueue(ctx context.Context, orgID string, actor service.Actor, query dto.IntakeQueueQuery) ([]models.Student, error)
	ListDismissed(ctx context.Context, orgID string, actor service.Actor) ([]models.Student, error)
	Assign(ctx context.Context, orgID string, actor service.Actor, studentID string, req dto.AssignInstructorRequest) (*models.Student, error)
	Approve(ctx context.Context, orgID string, actor service.Actor, studentID string, req dto.ApproveIntakeRequest) (*models.Student, error)
	Dismiss(ctx context.Context, orgID string, actor service.Actor, studentID string) (*models.Student, error)
	Restore(ctx context.Context, orgID string, actor service.Actor, studentID string) (*models.Student, error)
	Merge(ctx context.Context, orgID string, actor service.Actor, req dto.MergeStudentsRequest) (*models.MergeResult, error)
}

type suggestionService interface {
	Suggestions(ctx context.Context, orgID string, actor service.Actor, studentID string) (*service.DuplicateSuggestions, error)
}

// IntakeHandler exposes the intake reconciliation endpoints.
type IntakeHandler struct {
	service     intakeService
	suggestions suggestionService
}

// NewIntakeHandler constructs the handler.
func NewIntakeHandler(service intakeService, suggestions suggestionService) *IntakeHandler {
	return &IntakeHandler{service: service, suggestions: suggestions}
}

// Queue godoc
// @Summary List pending intake candidates
// @Tags Intake
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param instructor_id query string false "Instructor ID or 'unassigned'"
// @Success 200 {object} response.Envelope
// @Router /intake/queue [get]
func (h *IntakeHandler) Queue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.IntakeQueueQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	candidates, err := h.service.ListQueue(c.Request.Context(), orgFromContext(c), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Dismissed godoc
// @Summary List dismissed intake candidates
// @Tags Intake
// @Produce json
// @Param org_id query string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Router /intake/dismissed [get]
func (h *IntakeHandler) Dismissed(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	candidates, err := h.service.ListDismissed(c.Request.Context(), orgFromContext(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Assign godoc
// @Summary Assign an instructor to a candidate
// @Tags Intake
// @Accept json
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Candidate ID"
// @Param payload body dto.AssignInstructorRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /intake/{id}/assign [post]
func (h *IntakeHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AssignInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	student, err := h.service.Assign(c.Request.Context(), orgFromContext(c), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Approve godoc
// @Summary Approve a candidate onto the roster
// @Tags Intake
// @Accept json
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Candidate ID"
// @Param payload body dto.ApproveIntakeRequest true "Consent agreement"
// @Success 200 {object} response.Envelope
// @Router /intake/{id}/approve [post]
func (h *IntakeHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApproveIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
		return
	}
	student, err := h.service.Approve(c.Request.Context(), orgFromContext(c), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Dismiss godoc
// @Summary Dismiss a pending candidate
// @Tags Intake
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /intake/{id}/dismiss [post]
func (h *IntakeHandler) Dismiss(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.service.Dismiss(c.Request.Context(), orgFromContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Restore godoc
// @Summary Restore a dismissed candidate to the queue
// @Tags Intake
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /intake/{id}/restore [post]
func (h *IntakeHandler) Restore(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.service.Restore(c.Request.Context(), orgFromContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Merge godoc
// @Summary Merge a candidate into an existing student
// @Tags Intake
// @Accept json
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param payload body dto.MergeStudentsRequest true "Merge payload"
// @Success 200 {object} response.Envelope
// @Router /intake/merge [post]
func (h *IntakeHandler) Merge(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.MergeStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid merge payload"))
		return
	}
	result, err := h.service.Merge(c.Request.Context(), orgFromContext(c), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Suggestions godoc
// @Summary Duplicate suggestions for a candidate
// @Tags Intake
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /intake/{id}/suggestions [get]
func (h *IntakeHandler) Suggestions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	suggestions, err := h.suggestions.Suggestions(c.Request.Context(), orgFromContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}
