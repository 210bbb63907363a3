package dto

// CreateInstructorRequest adds an instructor to the organization roster.
type CreateInstructorRequest struct {
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	UserID   string `json:"user_id"`
}

// UpdateInstructorRequest applies a partial update; nil fields are untouched.
type UpdateInstructorRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone"`
}

// InstructorListQuery filters the instructor listing.
type InstructorListQuery struct {
	Search    string `form:"search"`
	Active    *bool  `form:"active"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}
