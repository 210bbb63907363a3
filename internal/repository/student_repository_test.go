package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorium/intake-api/internal/models"
)

func TestStudentRepositoryListExcludesCandidatesByDefault(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students s WHERE s\.org_id = \$1 AND s\.needs_intake_approval = false ORDER BY s\.created_at DESC LIMIT 20 OFFSET 0`).
		WithArgs("org-1").
		WillReturnRows(studentRows("s1"))
	mock.ExpectQuery(`SELECT COUNT\(s\.id\) FROM students s WHERE s\.org_id = \$1 AND s\.needs_intake_approval = false`).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{OrgID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListStatusAllWithSearch(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students s WHERE s\.org_id = \$1 AND \(LOWER\(s\.name\) LIKE \$2 OR s\.national_id LIKE \$2\) ORDER BY s\.name ASC LIMIT 10 OFFSET 10`).
		WithArgs("org-1", "%dana%").
		WillReturnRows(studentRows("s1", "s2"))
	mock.ExpectQuery(`SELECT COUNT\(s\.id\) FROM students s`).
		WithArgs("org-1", "%dana%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	students, total, err := repo.List(context.Background(), models.StudentFilter{
		OrgID: "org-1", Status: "all", Search: "Dana",
		Page: 2, PageSize: 10, SortBy: "name", SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Len(t, students, 2)
	assert.Equal(t, 12, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByNationalIDExcludesSelf(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students WHERE org_id = \$1 AND national_id = \$2 AND id <> \$3 LIMIT 1`).
		WithArgs("org-1", "123456789", "self").
		WillReturnRows(studentRows())

	_, err := repo.FindByNationalID(context.Background(), "org-1", "123456789", "self")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(`INSERT INTO students`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{OrgID: "org-1", Name: "Dana", Active: true}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID, "missing id is generated")
	assert.False(t, student.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateNoRows(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(`UPDATE students SET name`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Student{ID: "gone", OrgID: "org-1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
