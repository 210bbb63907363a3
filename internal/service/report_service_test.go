package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
	"github.com/tutorium/intake-api/pkg/jobs"
	"github.com/tutorium/intake-api/pkg/storage"
)

type reportJobRepoStub struct {
	jobs map[string]*models.ReportJob
}

func newReportJobRepoStub() *reportJobRepoStub {
	return &reportJobRepoStub{jobs: make(map[string]*models.ReportJob)}
}

func (r *reportJobRepoStub) Create(_ context.Context, job *models.ReportJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *reportJobRepoStub) FindByID(_ context.Context, _, id string) (*models.ReportJob, error) {
	if job, ok := r.jobs[id]; ok {
		copy := *job
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *reportJobRepoStub) MarkRunning(_ context.Context, id string) error {
	job, ok := r.jobs[id]
	if !ok || job.Status != models.ReportJobPending {
		return sql.ErrNoRows
	}
	job.Status = models.ReportJobRunning
	return nil
}

func (r *reportJobRepoStub) MarkCompleted(_ context.Context, id, filePath string) error {
	r.jobs[id].Status = models.ReportJobCompleted
	r.jobs[id].FilePath = filePath
	return nil
}

func (r *reportJobRepoStub) MarkFailed(_ context.Context, id, detail string) error {
	r.jobs[id].Status = models.ReportJobFailed
	r.jobs[id].ErrorDetail = &detail
	return nil
}

type hoursAggregatorStub struct {
	hours []models.InstructorHours
}

func (a *hoursAggregatorStub) InstructorHours(_ context.Context, _ string, _, _ time.Time) ([]models.InstructorHours, error) {
	return a.hours, nil
}

type inlineDispatcher struct {
	enqueued []jobs.Job
}

func (d *inlineDispatcher) Enqueue(job jobs.Job) error {
	d.enqueued = append(d.enqueued, job)
	return nil
}

func newReportServiceForTest(t *testing.T, repo reportJobStore, hours hoursAggregator) (*ReportService, *inlineDispatcher) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	svc := NewReportService(repo, hours, store, signer, nil, zap.NewNop())
	dispatcher := &inlineDispatcher{}
	svc.SetQueue(dispatcher)
	return svc, dispatcher
}

func reportWindow() (time.Time, time.Time) {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func TestReportCreateJobValidatesWindow(t *testing.T) {
	svc, _ := newReportServiceForTest(t, newReportJobRepoStub(), &hoursAggregatorStub{})
	from, _ := reportWindow()

	_, err := svc.CreateJob(context.Background(), "org-1", adminActor(), dto.CreateReportJobRequest{
		Format: models.ReportFormatCSV, From: from, To: from,
	})
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
}

func TestReportCreateJobEnqueues(t *testing.T) {
	repo := newReportJobRepoStub()
	svc, dispatcher := newReportServiceForTest(t, repo, &hoursAggregatorStub{})
	from, to := reportWindow()

	resp, err := svc.CreateJob(context.Background(), "org-1", adminActor(), dto.CreateReportJobRequest{
		Format: models.ReportFormatCSV, From: from, To: to,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportJobPending, resp.Job.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.Job.ID, dispatcher.enqueued[0].ID)
}

func TestReportProcessRendersCSVAndCompletes(t *testing.T) {
	repo := newReportJobRepoStub()
	hours := &hoursAggregatorStub{hours: []models.InstructorHours{
		{InstructorID: "inst-1", InstructorName: "Maya Cohen", SessionCount: 8, TotalMinutes: 360, TotalHours: 6},
	}}
	svc, dispatcher := newReportServiceForTest(t, repo, hours)
	from, to := reportWindow()
	ctx := context.Background()

	resp, err := svc.CreateJob(ctx, "org-1", adminActor(), dto.CreateReportJobRequest{
		Format: models.ReportFormatCSV, From: from, To: to,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Process(ctx, dispatcher.enqueued[0]))
	job := repo.jobs[resp.Job.ID]
	assert.Equal(t, models.ReportJobCompleted, job.Status)
	assert.NotEmpty(t, job.FilePath)

	polled, err := svc.GetJob(ctx, "org-1", adminActor(), job.ID)
	require.NoError(t, err)
	require.NotEmpty(t, polled.DownloadURL)
	require.NotNil(t, polled.ExpiresAt)

	token := strings.TrimPrefix(polled.DownloadURL, "/reports/download?token=")
	download, err := svc.Download(ctx, "org-1", token)
	require.NoError(t, err)
	defer download.File.Close()

	content, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Maya Cohen")
	assert.Contains(t, string(content), "Instructor,Sessions,Total minutes,Total hours")
}

func TestReportProcessSkipsAlreadyClaimedJob(t *testing.T) {
	repo := newReportJobRepoStub()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", OrgID: "org-1", Status: models.ReportJobRunning}
	svc, _ := newReportServiceForTest(t, repo, &hoursAggregatorStub{})

	err := svc.Process(context.Background(), jobs.Job{ID: "job-1", Payload: reportJobPayload{OrgID: "org-1", JobID: "job-1"}})
	require.NoError(t, err, "a claimed job is another worker's problem")
	assert.Equal(t, models.ReportJobRunning, repo.jobs["job-1"].Status)
}

func TestReportDownloadRejectsBadToken(t *testing.T) {
	svc, _ := newReportServiceForTest(t, newReportJobRepoStub(), &hoursAggregatorStub{})

	_, err := svc.Download(context.Background(), "org-1", "not-a-token")
	require.Error(t, err)
	var apiErr *appErrors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, apiErr.Code)
}

func TestReportCreateJobForbiddenForInstructor(t *testing.T) {
	svc, _ := newReportServiceForTest(t, newReportJobRepoStub(), &hoursAggregatorStub{})
	from, to := reportWindow()

	_, err := svc.CreateJob(context.Background(), "org-1", instructorActor(), dto.CreateReportJobRequest{
		Format: models.ReportFormatCSV, From: from, To: to,
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
