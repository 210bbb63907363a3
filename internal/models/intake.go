package models

import "time"

// IntakeState is the derived reconciliation state of a candidate.
type IntakeState string

const (
	IntakeStatePending   IntakeState = "pending"
	IntakeStateDismissed IntakeState = "dismissed"
	IntakeStateApproved  IntakeState = "approved"
)

// IntakeStateOf derives the reconciliation state from the record itself.
// A candidate is in exactly one state at a time.
func IntakeStateOf(s *Student) IntakeState {
	if !s.NeedsIntakeApproval {
		return IntakeStateApproved
	}
	if s.IntakeDismissedAt != nil {
		return IntakeStateDismissed
	}
	return IntakeStatePending
}

// Consent statements. The client must echo the exact sentence back; the
// acknowledgment payload is the only client-captured audit trail of consent.
const (
	ApprovalConsentStatement = "I confirm that this student's intake information has been reviewed and that I approve adding them to the active roster."
	MergeConsentStatement    = "I understand that merging is irreversible and that the source intake record will be permanently absorbed into the selected student."
)

// ConsentAgreement is the acknowledgment payload sent with approve and merge
// requests.
type ConsentAgreement struct {
	Acknowledged   bool      `json:"acknowledged"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
	Statement      string    `json:"statement"`
}

// Verify checks that the agreement was explicitly acknowledged with the
// expected statement and a captured timestamp.
func (a ConsentAgreement) Verify(expectedStatement string) bool {
	return a.Acknowledged && a.Statement == expectedStatement && !a.AcknowledgedAt.IsZero()
}

// UnassignedInstructorFilter is the sentinel filter value selecting
// candidates with no assigned instructor.
const UnassignedInstructorFilter = "unassigned"

// IntakeFilter scopes pending-queue listings.
type IntakeFilter struct {
	OrgID        string
	InstructorID string // instructor ID, UnassignedInstructorFilter, or empty for all
}
