package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Student represents a learner record. A freshly submitted intake arrives as
// a student row with NeedsIntakeApproval set; approval turns it into a
// regular roster record without moving it between tables.
type Student struct {
	ID                   string          `db:"id" json:"id"`
	OrgID                string          `db:"org_id" json:"org_id"`
	Name                 string          `db:"name" json:"name"`
	NationalID           string          `db:"national_id" json:"national_id"`
	ContactName          string          `db:"contact_name" json:"contact_name"`
	ContactPhone         string          `db:"contact_phone" json:"contact_phone"`
	Notes                string          `db:"notes" json:"notes"`
	Tags                 pq.StringArray  `db:"tags" json:"tags"`
	AssignedInstructorID *string         `db:"assigned_instructor_id" json:"assigned_instructor_id,omitempty"`
	NeedsIntakeApproval  bool            `db:"needs_intake_approval" json:"needs_intake_approval"`
	IntakeDismissedAt    *time.Time      `db:"intake_dismissed_at" json:"intake_dismissed_at,omitempty"`
	IntakeResponses      IntakeResponses `db:"intake_responses" json:"intake_responses,omitempty"`
	Active               bool            `db:"active" json:"active"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	OrgID     string
	Search    string
	Status    string // "all" includes intake candidates, "active" excludes them
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// IntakeResponse is a single submitted form answer. Values may be strings,
// numbers, or lists of strings; they are kept as raw JSON and rendered by
// the client using the org's display labels.
type IntakeResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// IntakeResponses preserves the submission order of form answers. It is
// persisted as a JSONB array of key/value pairs.
type IntakeResponses []IntakeResponse

// reservedIntakeKeys are system fields captured alongside the form answers
// that are never shown in queue views.
var reservedIntakeKeys = map[string]struct{}{
	"intake_html_source": {},
	"intake_date":        {},
	"response_id":        {},
}

// Visible returns the responses with reserved system keys filtered out,
// keeping submission order.
func (r IntakeResponses) Visible() IntakeResponses {
	out := make(IntakeResponses, 0, len(r))
	for _, resp := range r {
		if _, reserved := reservedIntakeKeys[resp.Key]; reserved {
			continue
		}
		out = append(out, resp)
	}
	return out
}

// Value implements driver.Valuer for JSONB storage.
func (r IntakeResponses) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB storage.
func (r *IntakeResponses) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported intake responses type %T", src)
	}
	return json.Unmarshal(raw, r)
}
