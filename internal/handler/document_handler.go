package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tutorium/intake-api/internal/models"
	"github.com/tutorium/intake-api/internal/service"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, orgID string, actor service.Actor, upload service.DocumentUpload) (*models.Document, error)
	ListByStudent(ctx context.Context, orgID string, actor service.Actor, studentID string) ([]models.Document, error)
	SignedURL(ctx context.Context, orgID string, actor service.Actor, id string) (string, time.Time, error)
	Download(ctx context.Context, orgID string, token string) (*service.DocumentDownload, error)
	Delete(ctx context.Context, orgID string, actor service.Actor, id string) error
}

// DocumentHandler exposes student document endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Upload a document for a student
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param student_id formData string true "Student ID"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), orgFromContext(c), actor, service.DocumentUpload{
		StudentID:   c.PostForm("student_id"),
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, doc, nil)
}

// ListByStudent godoc
// @Summary List documents for a student
// @Tags Documents
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param student_id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{student_id}/documents [get]
func (h *DocumentHandler) ListByStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, err := h.service.ListByStudent(c.Request.Context(), orgFromContext(c), actor, c.Param("student_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// SignedURL godoc
// @Summary Issue a signed download URL for a document
// @Tags Documents
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/url [get]
func (h *DocumentHandler) SignedURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token, expiresAt, err := h.service.SignedURL(c.Request.Context(), orgFromContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"download_url": fmt.Sprintf("/documents/download?token=%s", token),
		"expires_at":   expiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce application/octet-stream
// @Param org_id query string true "Organization ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.Download(c.Request.Context(), orgFromContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.FileName))
	c.Header("Content-Type", download.ContentType)
	c.File(download.File.Name())
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Produce json
// @Param org_id query string true "Organization ID"
// @Param id path string true "Document ID"
// @Success 204 "No Content"
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), orgFromContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
