package dto

import (
	"time"

	"github.com/tutorium/intake-api/internal/models"
)

// CreateReportJobRequest queues an instructor-hours export.
type CreateReportJobRequest struct {
	Format models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	From   time.Time           `json:"from" validate:"required"`
	To     time.Time           `json:"to" validate:"required"`
}

// ReportJobResponse is returned when a job is queued or polled.
type ReportJobResponse struct {
	Job         *models.ReportJob `json:"job"`
	DownloadURL string            `json:"download_url,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}
