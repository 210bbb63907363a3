package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntakeStateOf(t *testing.T) {
	now := time.Now()

	assert.Equal(t, IntakeStateApproved, IntakeStateOf(&Student{NeedsIntakeApproval: false}))
	assert.Equal(t, IntakeStatePending, IntakeStateOf(&Student{NeedsIntakeApproval: true}))
	assert.Equal(t, IntakeStateDismissed, IntakeStateOf(&Student{NeedsIntakeApproval: true, IntakeDismissedAt: &now}))
	// the dismissal timestamp is irrelevant once approved
	assert.Equal(t, IntakeStateApproved, IntakeStateOf(&Student{NeedsIntakeApproval: false, IntakeDismissedAt: &now}))
}

func TestConsentAgreementVerify(t *testing.T) {
	now := time.Now()

	valid := ConsentAgreement{Acknowledged: true, AcknowledgedAt: now, Statement: ApprovalConsentStatement}
	assert.True(t, valid.Verify(ApprovalConsentStatement))
	assert.False(t, valid.Verify(MergeConsentStatement), "statements are not interchangeable")

	assert.False(t, ConsentAgreement{Acknowledged: false, AcknowledgedAt: now, Statement: ApprovalConsentStatement}.Verify(ApprovalConsentStatement))
	assert.False(t, ConsentAgreement{Acknowledged: true, Statement: ApprovalConsentStatement}.Verify(ApprovalConsentStatement))
	assert.False(t, ConsentAgreement{Acknowledged: true, AcknowledgedAt: now, Statement: "i agree"}.Verify(ApprovalConsentStatement))
}

func TestIntakeResponsesVisible(t *testing.T) {
	responses := IntakeResponses{
		{Key: "name", Value: json.RawMessage(`"Dana"`)},
		{Key: "intake_html_source", Value: json.RawMessage(`"<html>"`)},
		{Key: "subjects", Value: json.RawMessage(`["math"]`)},
		{Key: "response_id", Value: json.RawMessage(`"abc"`)},
	}

	visible := responses.Visible()
	assert.Len(t, visible, 2)
	assert.Equal(t, "name", visible[0].Key)
	assert.Equal(t, "subjects", visible[1].Key, "submission order is preserved")
}

func TestAuthorizeMatrix(t *testing.T) {
	assert.True(t, Authorize(RoleAdmin, PermIntakeMerge))
	assert.True(t, Authorize(RoleOwner, PermSettingsWrite))
	assert.True(t, Authorize(RoleInstructor, PermIntakeApprove))
	assert.False(t, Authorize(RoleInstructor, PermIntakeDismiss))
	assert.False(t, Authorize(RoleInstructor, PermIntakeMerge))
	assert.False(t, Authorize(RoleInstructor, PermStudentWrite))
	assert.False(t, Authorize(UserRole("GUEST"), PermStudentRead))

	assert.True(t, IsElevated(RoleAdmin))
	assert.True(t, IsElevated(RoleOwner))
	assert.False(t, IsElevated(RoleInstructor))
}
