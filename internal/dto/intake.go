package dto

import "github.com/tutorium/intake-api/internal/models"

// AssignInstructorRequest sets a candidate's instructor and persists contact
// edits made in the same dialog.
type AssignInstructorRequest struct {
	AssignedInstructorID string `json:"assigned_instructor_id" validate:"required"`
	Name                 string `json:"name"`
	ContactName          string `json:"contact_name"`
	ContactPhone         string `json:"contact_phone"`
}

// ApproveIntakeRequest carries the explicit consent agreement. The approval
// is rejected unless the agreement echoes the exact consent statement.
type ApproveIntakeRequest struct {
	Agreement models.ConsentAgreement `json:"agreement"`
}

// MergeStudentsRequest folds a pending intake candidate into an existing
// student according to per-field selections.
type MergeStudentsRequest struct {
	SourceStudentID string                  `json:"source_student_id" validate:"required"`
	TargetStudentID string                  `json:"target_student_id" validate:"required"`
	Fields          models.MergeSelections  `json:"fields"`
	Agreement       models.ConsentAgreement `json:"agreement"`
}

// IntakeQueueQuery filters the pending queue view.
type IntakeQueueQuery struct {
	InstructorID string `form:"instructor_id"`
}
