package models

// FieldChoice picks which side of a merge supplies a field value.
type FieldChoice string

const (
	ChoiceSource   FieldChoice = "source"
	ChoiceTarget   FieldChoice = "target"
	ChoiceCombined FieldChoice = "combined" // tags only
)

// MergeField names a field that can be selected during a merge.
type MergeField string

const (
	MergeFieldName         MergeField = "name"
	MergeFieldNationalID   MergeField = "national_id"
	MergeFieldContactName  MergeField = "contact_name"
	MergeFieldContactPhone MergeField = "contact_phone"
	MergeFieldInstructor   MergeField = "assigned_instructor_id"
	MergeFieldNotes        MergeField = "notes"
	MergeFieldTags         MergeField = "tags"
)

// MergeSelections maps field names to per-field choices. Missing entries
// default to ChoiceSource.
type MergeSelections map[MergeField]FieldChoice

// MergePayload is the resolved field set applied to the surviving target
// record.
type MergePayload struct {
	Name                 string   `json:"name"`
	NationalID           string   `json:"national_id"`
	ContactName          string   `json:"contact_name"`
	ContactPhone         string   `json:"contact_phone"`
	AssignedInstructorID *string  `json:"assigned_instructor_id,omitempty"`
	Notes                string   `json:"notes"`
	Tags                 []string `json:"tags"`
}

// MergeResult returns both records after a merge: the retired source and the
// updated target.
type MergeResult struct {
	Source *Student `json:"source"`
	Target *Student `json:"target"`
}
