package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tutorium/intake-api/internal/dto"
	"github.com/tutorium/intake-api/internal/models"
	appErrors "github.com/tutorium/intake-api/pkg/errors"
)

type studentRepoStub struct {
	students   map[string]*models.Student
	byNational map[string]*models.Student
	similar    []models.Student

	created    *models.Student
	updated    *models.Student
	lastFilter models.StudentFilter
}

func newStudentRepoStub() *studentRepoStub {
	return &studentRepoStub{
		students:   make(map[string]*models.Student),
		byNational: make(map[string]*models.Student),
	}
}

func (r *studentRepoStub) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	r.lastFilter = filter
	out := make([]models.Student, 0, len(r.students))
	for _, s := range r.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (r *studentRepoStub) FindByID(_ context.Context, _, id string) (*models.Student, error) {
	if s, ok := r.students[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *studentRepoStub) FindByNationalID(_ context.Context, _, nationalID, excludeID string) (*models.Student, error) {
	if s, ok := r.byNational[nationalID]; ok && s.ID != excludeID {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *studentRepoStub) SimilarByName(_ context.Context, _, _ string, _ int) ([]models.Student, error) {
	return r.similar, nil
}

func (r *studentRepoStub) Create(_ context.Context, student *models.Student) error {
	r.created = student
	r.students[student.ID] = student
	return nil
}

func (r *studentRepoStub) Update(_ context.Context, student *models.Student) error {
	r.updated = student
	r.students[student.ID] = student
	return nil
}

func (r *studentRepoStub) Deactivate(_ context.Context, _, id string) error {
	if _, ok := r.students[id]; !ok {
		return sql.ErrNoRows
	}
	r.students[id].Active = false
	return nil
}

func newStudentServiceForTest(repo *studentRepoStub) *StudentService {
	return NewStudentService(repo, nil, nil, zap.NewNop(), 5)
}

func TestStudentCreateValidatesNationalIDFormat(t *testing.T) {
	svc := newStudentServiceForTest(newStudentRepoStub())
	ctx := context.Background()

	for _, bad := range []string{"1234", "1234567890123", "12a45", "12 345"} {
		_, err := svc.Create(ctx, "org-1", adminActor(), dto.CreateStudentRequest{Name: "Dana", NationalID: bad})
		require.Error(t, err, "national id %q must be rejected", bad)
		var apiErr *appErrors.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, appErrors.ErrValidation.Code, apiErr.Code)
	}
}

func TestStudentCreateRejectsDuplicateNationalID(t *testing.T) {
	repo := newStudentRepoStub()
	repo.byNational["123456789"] = &models.Student{ID: "existing", NationalID: "123456789"}
	svc := newStudentServiceForTest(repo)

	_, err := svc.Create(context.Background(), "org-1", adminActor(), dto.CreateStudentRequest{Name: "Dana", NationalID: "123456789"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateNationalID)
}

func TestStudentCreateWithoutNationalID(t *testing.T) {
	repo := newStudentRepoStub()
	svc := newStudentServiceForTest(repo)

	student, err := svc.Create(context.Background(), "org-1", adminActor(), dto.CreateStudentRequest{
		Name: "  Dana Levi  ",
		Tags: []string{"math"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "Dana Levi", student.Name)
	assert.True(t, student.Active)
	assert.Equal(t, "org-1", student.OrgID)
	require.NotNil(t, repo.created)
}

func TestStudentUpdateNationalIDChangeGuarded(t *testing.T) {
	repo := newStudentRepoStub()
	repo.students["s1"] = &models.Student{ID: "s1", OrgID: "org-1", Name: "Dana", NationalID: "111112222"}
	repo.byNational["999998888"] = &models.Student{ID: "other", NationalID: "999998888"}
	svc := newStudentServiceForTest(repo)

	taken := "999998888"
	_, err := svc.Update(context.Background(), "org-1", adminActor(), "s1", dto.UpdateStudentRequest{NationalID: &taken})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateNationalID)
	assert.Nil(t, repo.updated)
}

func TestStudentUpdateSameNationalIDSkipsGuard(t *testing.T) {
	repo := newStudentRepoStub()
	repo.students["s1"] = &models.Student{ID: "s1", OrgID: "org-1", Name: "Dana", NationalID: "111112222"}
	repo.byNational["111112222"] = repo.students["s1"]
	svc := newStudentServiceForTest(repo)

	same := "111112222"
	notes := "updated notes"
	student, err := svc.Update(context.Background(), "org-1", adminActor(), "s1", dto.UpdateStudentRequest{
		NationalID: &same,
		Notes:      &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, "updated notes", student.Notes)
}

func TestStudentUpdateClearsInstructorOnEmptyString(t *testing.T) {
	inst := "inst-1"
	repo := newStudentRepoStub()
	repo.students["s1"] = &models.Student{ID: "s1", OrgID: "org-1", Name: "Dana", AssignedInstructorID: &inst}
	svc := newStudentServiceForTest(repo)

	empty := ""
	student, err := svc.Update(context.Background(), "org-1", adminActor(), "s1", dto.UpdateStudentRequest{AssignedInstructorID: &empty})
	require.NoError(t, err)
	assert.Nil(t, student.AssignedInstructorID)
}

func TestStudentDeactivateElevatedOnly(t *testing.T) {
	repo := newStudentRepoStub()
	repo.students["s1"] = &models.Student{ID: "s1", Active: true}
	svc := newStudentServiceForTest(repo)

	err := svc.Deactivate(context.Background(), "org-1", instructorActor(), "s1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.Deactivate(context.Background(), "org-1", adminActor(), "s1")
	require.NoError(t, err)
	assert.False(t, repo.students["s1"].Active)
}

func TestStudentListPaginationDefaults(t *testing.T) {
	repo := newStudentRepoStub()
	svc := newStudentServiceForTest(repo)

	_, pagination, err := svc.List(context.Background(), "org-1", adminActor(), dto.StudentListQuery{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lastFilter.Page)
	assert.Equal(t, 20, repo.lastFilter.PageSize, "oversized page size falls back to the default")
	assert.Equal(t, 1, pagination.Page)
}

func TestSuggestionsExcludesCandidateItself(t *testing.T) {
	repo := newStudentRepoStub()
	repo.students["cand"] = &models.Student{ID: "cand", OrgID: "org-1", Name: "Dana Levi", NationalID: "123456789", NeedsIntakeApproval: true}
	repo.byNational["123456789"] = &models.Student{ID: "roster-1", NationalID: "123456789"}
	repo.similar = []models.Student{
		{ID: "cand", Name: "Dana Levi"},
		{ID: "roster-2", Name: "Dana Levy"},
	}
	svc := newStudentServiceForTest(repo)

	suggestions, err := svc.Suggestions(context.Background(), "org-1", adminActor(), "cand")
	require.NoError(t, err)
	require.NotNil(t, suggestions.NationalIDMatch)
	assert.Equal(t, "roster-1", suggestions.NationalIDMatch.ID)
	require.Len(t, suggestions.NameMatches, 1)
	assert.Equal(t, "roster-2", suggestions.NameMatches[0].ID)
}

func TestSuggestionsNoNationalID(t *testing.T) {
	repo := newStudentRepoStub()
	repo.students["cand"] = &models.Student{ID: "cand", OrgID: "org-1", Name: "Dana", NeedsIntakeApproval: true}
	svc := newStudentServiceForTest(repo)

	suggestions, err := svc.Suggestions(context.Background(), "org-1", adminActor(), "cand")
	require.NoError(t, err)
	assert.Nil(t, suggestions.NationalIDMatch)
	assert.Empty(t, suggestions.NameMatches)
}
