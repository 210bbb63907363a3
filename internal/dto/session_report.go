package dto

import "time"

// CreateSessionReportRequest records a delivered session.
type CreateSessionReportRequest struct {
	StudentID       string    `json:"student_id" validate:"required"`
	SessionDate     time.Time `json:"session_date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0,lte=720"`
	Notes           string    `json:"notes"`
}

// SessionReportListQuery filters session report listings.
type SessionReportListQuery struct {
	StudentID    string     `form:"student_id"`
	InstructorID string     `form:"instructor_id"`
	From         *time.Time `form:"from" time_format:"2006-01-02"`
	To           *time.Time `form:"to" time_format:"2006-01-02"`
	Page         int        `form:"page"`
	PageSize     int        `form:"page_size"`
}

// InstructorHoursQuery selects the aggregation window.
type InstructorHoursQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02" binding:"required"`
	To   time.Time `form:"to" time_format:"2006-01-02" binding:"required"`
}
