package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	"github.com/tutorium/intake-api/internal/service"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/response"
)

type sessionReportService interface {
	Create(ctx context.Context, orgID string, actor service.Actor, instructorID string, req dto.CreateSessionReportRequest) (*models.SessionReport, error)
	List(ctx context.Context, orgID string, actor service.Actor, query dto.SessionReportListQuery) ([]models.SessionReport, *models.Pagination, error)
	InstructorHours(ctx context.Context, orgID string, actor service.Actor, from, to time.Time) ([]models.InstructorHours, error)
}

type reportJobService interface {
	CreateJob(ctx context.Context, orgID string, actor service.Actor, req dto.CreateReportJobRequest) (*dto.ReportJobResponse, error)
	GetJob(ctx context.Context, orgID string, actor service.Actor, id string) (*dto.ReportJobResponse, error)
	Download(ctx context.Context, orgID string, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes session reporting and export endpoints.
type ReportHandler struct {
	sessions sessionReportService
	jobs     reportJobService
}

// NewReportHandler constructs the handler.
func NewReportHandler(sessions sessionReportService, jobs reportJobService) *ReportHandler {
	return &ReportHandler{sessions: sessions, jobs: jobs}
}

// CreateSession godoc
// @Summary Record a delivered session
// @Tags Reports
// @Accept json
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param instructor_id query string false "Instructor ID (admin only)"
// @Param payload body dto.CreateSessionReportRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *ReportHandler) CreateSession(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateSessionReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session payload"))
		return
	}
	report, err := h.sessions.Create(c.Request.Context(), orgFromContext(c), actor, c.Query("instructor_id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, report, nil)
}

// ListSessions godoc
// @Summary List session reports
// @Tags Reports
// @Produce json
// @Param org_id query string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *ReportHandler) ListSessions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.SessionReportListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	reports, pagination, err := h.sessions.List(c.Request.Context(), orgFromContext(c), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, pagination)
}

// InstructorHours godoc
// @Summary Aggregate instructor hours
// @Tags Reports
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/hours [get]
func (h *ReportHandler) InstructorHours(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.InstructorHoursQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to dates are required"))
		return
	}
	hours, err := h.sessions.InstructorHours(c.Request.Context(), orgFromContext(c), actor, query.From, query.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hours, nil)
}

// CreateJob godoc
// @Summary Queue an instructor-hours export
// @Tags Reports
// @Accept json
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param payload body dto.CreateReportJobRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /reports/jobs [post]
func (h *ReportHandler) CreateJob(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export request"))
		return
	}
	resp, err := h.jobs.CreateJob(c.Request.Context(), orgFromContext(c), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, resp, nil)
}

// GetJob godoc
// @Summary Poll an export job
// @Tags Reports
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/jobs/{id} [get]
func (h *ReportHandler) GetJob(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	resp, err := h.jobs.GetJob(c.Request.Context(), orgFromContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Download godoc
// @Summary Download a rendered export
// @Tags Reports
// @Produce application/octet-stream
// @Param org_id query string true "Organization ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.jobs.Download(c.Request.Context(), orgFromContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	contentType := "text/csv"
	if download.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Content-Type", contentType)
	c.File(download.File.Name())
}
