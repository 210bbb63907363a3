package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type intakeRepoStub struct {
	pending   []models.Student
	dismissed []models.Student
	returned  *models.Student
	merged    *models.MergeResult

	lastFilter  models.IntakeFilter
	lastPayload models.MergePayload

	assignErr  error
	approveErr error
	dismissErr error
	restoreErr error
	mergeErr   error
}

func (r *intakeRepoStub) ListPending(_ context.Context, filter models.IntakeFilter) ([]models.Student, error) {
	r.lastFilter = filter
	return r.pending, nil
}

func (r *intakeRepoStub) ListDismissed(_ context.Context, _ string) ([]models.Student, error) {
	return r.dismissed, nil
}

func (r *intakeRepoStub) Assign(_ context.Context, _, _, _, _, _, _ string) (*models.Student, error) {
	if r.assignErr != nil {
		return nil, r.assignErr
	}
	return r.returned, nil
}

func (r *intakeRepoStub) Approve(_ context.Context, _, _ string) (*models.Student, error) {
	if r.approveErr != nil {
		return nil, r.approveErr
	}
	return r.returned, nil
}

func (r *intakeRepoStub) Dismiss(_ context.Context, _, _ string) (*models.Student, error) {
	if r.dismissErr != nil {
		return nil, r.dismissErr
	}
	return r.returned, nil
}

func (r *intakeRepoStub) Restore(_ context.Context, _, _ string) (*models.Student, error) {
	if r.restoreErr != nil {
		return nil, r.restoreErr
	}
	return r.returned, nil
}

func (r *intakeRepoStub) Merge(_ context.Context, _, _, _ string, payload models.MergePayload) (*models.MergeResult, error) {
	r.lastPayload = payload
	if r.mergeErr != nil {
		return nil, r.mergeErr
	}
	return r.merged, nil
}

type candidateReaderStub struct {
	students map[string]*models.Student
}

func (r *candidateReaderStub) FindByID(_ context.Context, _, id string) (*models.Student, error) {
	if s, ok := r.students[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type instructorResolverStub struct {
	known  map[string]bool
	byUser map[string]*models.Instructor
}

func (r *instructorResolverStub) ExistsInOrg(_ context.Context, _, id string) (bool, error) {
	return r.known[id], nil
}

func (r *instructorResolverStub) FindByUserID(_ context.Context, _, userID string) (*models.Instructor, error) {
	if inst, ok := r.byUser[userID]; ok {
		return inst, nil
	}
	return nil, sql.ErrNoRows
}

type auditLoggerStub struct {
	logs []*models.AuditLog
}

func (a *auditLoggerStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func validAgreement(statement string) models.ConsentAgreement {
	return models.ConsentAgreement{
		Acknowledged:   true,
		AcknowledgedAt: time.Now(),
		Statement:      statement,
	}
}

func pendingCandidate(id, instructorID string) *models.Student {
	s := &models.Student{ID: id, OrgID: "org-1", Name: "Candidate " + id, NeedsIntakeApproval: true, Active: true}
	if instructorID != "" {
		s.AssignedInstructorID = &instructorID
	}
	return s
}

func adminActor() Actor {
	return Actor{UserID: "user-admin", Role: models.RoleAdmin}
}

func instructorActor() Actor {
	return Actor{UserID: "user-inst", Role: models.RoleInstructor}
}

func newIntakeServiceForTest(repo *intakeRepoStub, students *candidateReaderStub, instructors *instructorResolverStub, audit *auditLoggerStub) *IntakeService {
	var auditIface auditLogger
	if audit != nil {
		auditIface = audit
	}
	return NewIntakeService(repo, students, instructors, auditIface, nil, zap.NewNop())
}

func TestListQueueScopesInstructorToOwnAssignments(t *testing.T) {
	repo := &intakeRepoStub{pending: []models.Student{*pendingCandidate("s1", "inst-1")}}
	resolver := &instructorResolverStub{byUser: map[string]*models.Instructor{
		"user-inst": {ID: "inst-1", OrgID: "org-1"},
	}}
	svc := newIntakeServiceForTest(repo, &candidateReaderStub{}, resolver, nil)

	_, err := svc.ListQueue(context.Background(), "org-1", instructorActor(), dto.IntakeQueueQuery{InstructorID: "inst-other"})
	require.NoError(t, err)
	// the requested filter is ignored for non-elevated callers
	assert.Equal(t, "inst-1", repo.lastFilter.InstructorID)
}

func TestListQueueInstructorWithoutIdentitySeesNothing(t *testing.T) {
	repo := &intakeRepoStub{pending: []models.Student{*pendingCandidate("s1", "inst-1")}}
	svc := newIntakeServiceForTest(repo, &candidateReaderStub{}, &instructorResolverStub{}, nil)

	result, err := svc.ListQueue(context.Background(), "org-1", instructorActor(), dto.IntakeQueueQuery{})
	require.NoError(t, err)
	assert.Empty(t, result)
	assert.Empty(t, repo.lastFilter.OrgID, "repository must not be queried")
}

func TestListQueueAdminPassesFilterThrough(t *testing.T) {
	repo := &intakeRepoStub{}
	svc := newIntakeServiceForTest(repo, &candidateReaderStub{}, &instructorResolverStub{}, nil)

	_, err := svc.ListQueue(context.Background(), "org-1", adminActor(), dto.IntakeQueueQuery{InstructorID: models.UnassignedInstructorFilter})
	require.NoError(t, err)
	assert.Equal(t, models.UnassignedInstructorFilter, repo.lastFilter.InstructorID)
}

func TestListDismissedForbiddenForInstructor(t *testing.T) {
	svc := newIntakeServiceForTest(&intakeRepoStub{}, &candidateReaderStub{}, &instructorResolverStub{}, nil)

	_, err := svc.ListDismissed(context.Background(), "org-1", instructorActor())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAssignRejectsUnknownInstructor(t *testing.T) {
	svc := newIntakeServiceForTest(&intakeRepoStub{}, &candidateReaderStub{}, &instructorResolverStub{known: map[string]bool{}}, nil)

	_, err := svc.Assign(context.Background(), "org-1", adminActor(), "s1", dto.AssignInstructorRequest{AssignedInstructorID: "ghost"})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestAssignConflictWhenNoLongerPending(t *testing.T) {
	repo := &intakeRepoStub{assignErr: sql.ErrNoRows}
	svc := newIntakeServiceForTest(repo, &candidateReaderStub{}, &instructorResolverStub{known: map[string]bool{"inst-1": true}}, nil)

	_, err := svc.Assign(context.Background(), "org-1", adminActor(), "s1", dto.AssignInstructorRequest{AssignedInstructorID: "inst-1"})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestApproveRequiresConsent(t *testing.T) {
	svc := newIntakeServiceForTest(&intakeRepoStub{}, &candidateReaderStub{}, &instructorResolverStub{}, nil)

	cases := []models.ConsentAgreement{
		{},
		{Acknowledged: true, AcknowledgedAt: time.Now(), Statement: "I agree"},
		{Acknowledged: false, AcknowledgedAt: time.Now(), Statement: models.ApprovalConsentStatement},
		{Acknowledged: true, Statement: models.ApprovalConsentStatement},
	}
	for _, agreement := range cases {
		_, err := svc.Approve(context.Background(), "org-1", adminActor(), "s1", dto.ApproveIntakeRequest{Agreement: agreement})
		assert.ErrorIs(t, err, appErrors.ErrConsentRequired)
	}
}

func TestApproveRejectsUnassignedCandidate(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"s1": pendingCandidate("s1", ""),
	}}
	svc := newIntakeServiceForTest(&intakeRepoStub{}, students, &instructorResolverStub{}, nil)

	_, err := svc.Approve(context.Background(), "org-1", adminActor(), "s1", dto.ApproveIntakeRequest{Agreement: validAgreement(models.ApprovalConsentStatement)})
	assert.ErrorIs(t, err, appErrors.ErrUnassignedCandidate)
}

func TestApproveInstructorSelfOnly(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"mine":   pendingCandidate("mine", "inst-1"),
		"theirs": pendingCandidate("theirs", "inst-2"),
	}}
	resolver := &instructorResolverStub{byUser: map[string]*models.Instructor{
		"user-inst": {ID: "inst-1", OrgID: "org-1"},
	}}
	repo := &intakeRepoStub{returned: &models.Student{ID: "mine", NeedsIntakeApproval: false}}
	audit := &auditLoggerStub{}
	svc := newIntakeServiceForTest(repo, students, resolver, audit)

	agreement := dto.ApproveIntakeRequest{Agreement: validAgreement(models.ApprovalConsentStatement)}

	approved, err := svc.Approve(context.Background(), "org-1", instructorActor(), "mine", agreement)
	require.NoError(t, err)
	assert.False(t, approved.NeedsIntakeApproval)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionIntakeApprove, audit.logs[0].Action)

	_, err = svc.Approve(context.Background(), "org-1", instructorActor(), "theirs", agreement)
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, apiErr.Code)
}

func TestApproveAdminOnBehalf(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"s1": pendingCandidate("s1", "inst-2"),
	}}
	repo := &intakeRepoStub{returned: &models.Student{ID: "s1"}}
	svc := newIntakeServiceForTest(repo, students, &instructorResolverStub{}, nil)

	_, err := svc.Approve(context.Background(), "org-1", adminActor(), "s1", dto.ApproveIntakeRequest{Agreement: validAgreement(models.ApprovalConsentStatement)})
	require.NoError(t, err)
}

func TestApproveConflictWhenDismissed(t *testing.T) {
	dismissed := pendingCandidate("s1", "inst-1")
	now := time.Now()
	dismissed.IntakeDismissedAt = &now
	students := &candidateReaderStub{students: map[string]*models.Student{"s1": dismissed}}
	svc := newIntakeServiceForTest(&intakeRepoStub{}, students, &instructorResolverStub{}, nil)

	_, err := svc.Approve(context.Background(), "org-1", adminActor(), "s1", dto.ApproveIntakeRequest{Agreement: validAgreement(models.ApprovalConsentStatement)})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestDismissAndRestoreConflicts(t *testing.T) {
	repo := &intakeRepoStub{dismissErr: sql.ErrNoRows, restoreErr: sql.ErrNoRows}
	svc := newIntakeServiceForTest(repo, &candidateReaderStub{}, &instructorResolverStub{}, nil)

	_, err := svc.Dismiss(context.Background(), "org-1", adminActor(), "s1")
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)

	_, err = svc.Restore(context.Background(), "org-1", adminActor(), "s1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestDismissForbiddenForInstructor(t *testing.T) {
	svc := newIntakeServiceForTest(&intakeRepoStub{}, &candidateReaderStub{}, &instructorResolverStub{}, nil)

	_, err := svc.Dismiss(context.Background(), "org-1", instructorActor(), "s1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestMergeGuards(t *testing.T) {
	approved := pendingCandidate("done", "inst-1")
	approved.NeedsIntakeApproval = false
	students := &candidateReaderStub{students: map[string]*models.Student{
		"src":  pendingCandidate("src", "inst-1"),
		"tgt":  pendingCandidate("tgt", ""),
		"done": approved,
	}}
	svc := newIntakeServiceForTest(&intakeRepoStub{}, students, &instructorResolverStub{}, nil)
	ctx := context.Background()
	agreement := validAgreement(models.MergeConsentStatement)

	_, err := svc.Merge(ctx, "org-1", instructorActor(), dto.MergeStudentsRequest{
		SourceStudentID: "src", TargetStudentID: "tgt", Agreement: agreement,
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden, "instructors cannot merge")

	_, err = svc.Merge(ctx, "org-1", adminActor(), dto.MergeStudentsRequest{
		SourceStudentID: "src", TargetStudentID: "tgt", Agreement: validAgreement(models.ApprovalConsentStatement),
	})
	assert.ErrorIs(t, err, appErrors.ErrConsentRequired, "approval statement does not cover merges")

	_, err = svc.Merge(ctx, "org-1", adminActor(), dto.MergeStudentsRequest{
		SourceStudentID: "src", TargetStudentID: "src", Agreement: agreement,
	})
	require.Error(t, err, "self-merge must be rejected")

	_, err = svc.Merge(ctx, "org-1", adminActor(), dto.MergeStudentsRequest{
		SourceStudentID: "done", TargetStudentID: "tgt", Agreement: agreement,
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code, "approved records are no longer merge sources")

	_, err = svc.Merge(ctx, "org-1", adminActor(), dto.MergeStudentsRequest{
		SourceStudentID: "src", TargetStudentID: "tgt", Agreement: agreement,
		Fields: models.MergeSelections{models.MergeFieldName: models.ChoiceCombined},
	})
	require.Error(t, err, "invalid selections are rejected before any load")
}

func TestMergeAppliesResolvedPayload(t *testing.T) {
	source := pendingCandidate("src", "inst-1")
	source.Name = "Source Name"
	source.Tags = []string{"a"}
	target := pendingCandidate("tgt", "")
	target.NeedsIntakeApproval = false
	target.Name = "Target Name"
	target.Tags = []string{"b"}

	students := &candidateReaderStub{students: map[string]*models.Student{"src": source, "tgt": target}}
	repo := &intakeRepoStub{merged: &models.MergeResult{Source: source, Target: target}}
	audit := &auditLoggerStub{}
	svc := newIntakeServiceForTest(repo, students, &instructorResolverStub{}, audit)

	result, err := svc.Merge(context.Background(), "org-1", adminActor(), dto.MergeStudentsRequest{
		SourceStudentID: "src",
		TargetStudentID: "tgt",
		Agreement:       validAgreement(models.MergeConsentStatement),
		Fields: models.MergeSelections{
			models.MergeFieldName: models.ChoiceTarget,
			models.MergeFieldTags: models.ChoiceCombined,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Target Name", repo.lastPayload.Name)
	assert.Equal(t, []string{"a", "b"}, repo.lastPayload.Tags)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStudentMerge, audit.logs[0].Action)
}

func TestMergeConcurrentModificationConflict(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"src": pendingCandidate("src", "inst-1"),
		"tgt": pendingCandidate("tgt", ""),
	}}
	repo := &intakeRepoStub{mergeErr: sql.ErrNoRows}
	svc := newIntakeServiceForTest(repo, students, &instructorResolverStub{}, nil)

	_, err := svc.Merge(context.Background(), "org-1", adminActor(), dto.MergeStudentsRequest{
		SourceStudentID: "src",
		TargetStudentID: "tgt",
		Agreement:       validAgreement(models.MergeConsentStatement),
	})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestApproveConflictOnConcurrentTransition(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"s1": pendingCandidate("s1", "inst-1"),
	}}
	repo := &intakeRepoStub{approveErr: sql.ErrNoRows}
	svc := newIntakeServiceForTest(repo, students, &instructorResolverStub{}, nil)

	_, err := svc.Approve(context.Background(), "org-1", adminActor(), "s1", dto.ApproveIntakeRequest{Agreement: validAgreement(models.ApprovalConsentStatement)})
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
	assert.False(t, errors.Is(err, appErrors.ErrUnassignedCandidate))
}
