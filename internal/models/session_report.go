package models

import "time"

// SessionReport is an instructor's record of a delivered session. It is the
// raw material for payroll-adjacent hours reporting.
type SessionReport struct {
	ID              string    `db:"id" json:"id"`
	OrgID           string    `db:"org_id" json:"org_id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	InstructorID    string    `db:"instructor_id" json:"instructor_id"`
	SessionDate     time.Time `db:"session_date" json:"session_date"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Notes           string    `db:"notes" json:"notes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SessionReportFilter scopes session report listings.
type SessionReportFilter struct {
	OrgID        string
	StudentID    string
	InstructorID string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// InstructorHours aggregates reported session time per instructor for a
// date range.
type InstructorHours struct {
	InstructorID   string  `db:"instructor_id" json:"instructor_id"`
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	SessionCount   int     `db:"session_count" json:"session_count"`
	TotalMinutes   int     `db:"total_minutes" json:"total_minutes"`
	TotalHours     float64 `json:"total_hours"`
}
