package dto

// CreateStudentRequest creates a roster student directly, bypassing intake.
type CreateStudentRequest struct {
	Name                 string   `json:"name" validate:"required,min=1,max=200"`
	NationalID           string   `json:"national_id"`
	ContactName          string   `json:"contact_name"`
	ContactPhone         string   `json:"contact_phone"`
	Notes                string   `json:"notes"`
	Tags                 []string `json:"tags"`
	AssignedInstructorID string   `json:"assigned_instructor_id"`
}

// UpdateStudentRequest applies a partial update; nil fields are untouched.
type UpdateStudentRequest struct {
	Name                 *string   `json:"name" validate:"omitempty,min=1,max=200"`
	NationalID           *string   `json:"national_id"`
	ContactName          *string   `json:"contact_name"`
	ContactPhone         *string   `json:"contact_phone"`
	Notes                *string   `json:"notes"`
	Tags                 *[]string `json:"tags"`
	AssignedInstructorID *string   `json:"assigned_instructor_id"`
}

// StudentListQuery filters the roster listing.
type StudentListQuery struct {
	Search    string `form:"search"`
	Status    string `form:"status"`
	Active    *bool  `form:"active"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}
