package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type sessionReportRepoStub struct {
	created    *models.SessionReport
	reports    []models.SessionReport
	hours      []models.InstructorHours
	lastFilter models.SessionReportFilter
}

func (r *sessionReportRepoStub) Create(_ context.Context, report *models.SessionReport) error {
	r.created = report
	return nil
}

func (r *sessionReportRepoStub) List(_ context.Context, filter models.SessionReportFilter) ([]models.SessionReport, int, error) {
	r.lastFilter = filter
	return r.reports, len(r.reports), nil
}

func (r *sessionReportRepoStub) InstructorHours(_ context.Context, _ string, _, _ time.Time) ([]models.InstructorHours, error) {
	return r.hours, nil
}

func approvedStudent(id string) *models.Student {
	return &models.Student{ID: id, OrgID: "org-1", Name: "Student " + id, Active: true}
}

func sessionRequest(studentID string) dto.CreateSessionReportRequest {
	return dto.CreateSessionReportRequest{
		StudentID:       studentID,
		SessionDate:     time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
	}
}

func TestSessionCreateRejectsIntakeCandidate(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"cand": pendingCandidate("cand", "inst-1"),
	}}
	resolver := &instructorResolverStub{known: map[string]bool{"inst-1": true}}
	svc := NewSessionReportService(&sessionReportRepoStub{}, students, resolver, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "org-1", adminActor(), "inst-1", sessionRequest("cand"))
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrConflict.Code, apiErr.Code)
}

func TestSessionCreateInstructorUsesOwnIdentity(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"s1": approvedStudent("s1"),
	}}
	resolver := &instructorResolverStub{byUser: map[string]*models.Instructor{
		"user-inst": {ID: "inst-1", OrgID: "org-1"},
	}}
	repo := &sessionReportRepoStub{}
	svc := NewSessionReportService(repo, students, resolver, nil, zap.NewNop())

	// the supplied instructor id is ignored for non-elevated callers
	report, err := svc.Create(context.Background(), "org-1", instructorActor(), "inst-other", sessionRequest("s1"))
	require.NoError(t, err)
	assert.Equal(t, "inst-1", report.InstructorID)
	assert.Equal(t, 45, report.DurationMinutes)
	require.NotNil(t, repo.created)
}

func TestSessionCreateAdminRequiresInstructorID(t *testing.T) {
	students := &candidateReaderStub{students: map[string]*models.Student{
		"s1": approvedStudent("s1"),
	}}
	svc := NewSessionReportService(&sessionReportRepoStub{}, students, &instructorResolverStub{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "org-1", adminActor(), "", sessionRequest("s1"))
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestSessionListScopesInstructor(t *testing.T) {
	resolver := &instructorResolverStub{byUser: map[string]*models.Instructor{
		"user-inst": {ID: "inst-1", OrgID: "org-1"},
	}}
	repo := &sessionReportRepoStub{}
	svc := NewSessionReportService(repo, &candidateReaderStub{}, resolver, nil, zap.NewNop())

	_, _, err := svc.List(context.Background(), "org-1", instructorActor(), dto.SessionReportListQuery{InstructorID: "inst-other"})
	require.NoError(t, err)
	assert.Equal(t, "inst-1", repo.lastFilter.InstructorID)
}

func TestInstructorHoursWindowValidation(t *testing.T) {
	svc := NewSessionReportService(&sessionReportRepoStub{}, &candidateReaderStub{}, &instructorResolverStub{}, nil, zap.NewNop())
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.InstructorHours(context.Background(), "org-1", adminActor(), from, from)
	require.Error(t, err, "empty window is rejected")

	_, err = svc.InstructorHours(context.Background(), "org-1", adminActor(), from, from.AddDate(0, 1, 0))
	require.NoError(t, err)

	_, err = svc.InstructorHours(context.Background(), "org-1", instructorActor(), from, from.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
