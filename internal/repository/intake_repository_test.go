package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorium/intake-api/internal/models"
)

func newIntakeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "name", "national_id", "contact_name", "contact_phone", "notes", "tags",
		"assigned_instructor_id", "needs_intake_approval", "intake_dismissed_at", "intake_responses",
		"active", "created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "org-1", "Candidate "+id, "", "", "", "", "{}", nil, true, nil, []byte("[]"), true, time.Now(), time.Now())
	}
	return rows
}

func TestIntakeRepositoryListPendingUnassigned(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewIntakeRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students\s+WHERE org_id = \$1 AND needs_intake_approval = true AND intake_dismissed_at IS NULL AND assigned_instructor_id IS NULL ORDER BY created_at ASC`).
		WithArgs("org-1").
		WillReturnRows(studentRows("s1", "s2"))

	candidates, err := repo.ListPending(context.Background(), models.IntakeFilter{OrgID: "org-1", InstructorID: models.UnassignedInstructorFilter})
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntakeRepositoryListPendingByInstructor(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewIntakeRepository(db)

	mock.ExpectQuery(`(?s)SELECT .+ FROM students\s+WHERE org_id = \$1 AND needs_intake_approval = true AND intake_dismissed_at IS NULL AND assigned_instructor_id = \$2 ORDER BY created_at ASC`).
		WithArgs("org-1", "inst-1").
		WillReturnRows(studentRows("s1"))

	candidates, err := repo.ListPending(context.Background(), models.IntakeFilter{OrgID: "org-1", InstructorID: "inst-1"})
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntakeRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewIntakeRepository(db)

	mock.ExpectQuery(`UPDATE students\s+SET needs_intake_approval = false, active = true`).
		WithArgs("s1", "org-1", sqlmock.AnyArg()).
		WillReturnRows(studentRows("s1"))

	student, err := repo.Approve(context.Background(), "org-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntakeRepositoryApproveLostRace(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewIntakeRepository(db)

	mock.ExpectQuery(`UPDATE students\s+SET needs_intake_approval = false`).
		WithArgs("s1", "org-1", sqlmock.AnyArg()).
		WillReturnRows(studentRows())

	_, err := repo.Approve(context.Background(), "org-1", "s1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntakeRepositoryDismissAndRestore(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewIntakeRepository(db)

	mock.ExpectQuery(`UPDATE students\s+SET intake_dismissed_at = \$3`).
		WithArgs("s1", "org-1", sqlmock.AnyArg()).
		WillReturnRows(studentRows("s1"))
	mock.ExpectQuery(`UPDATE students\s+SET intake_dismissed_at = NULL`).
		WithArgs("s1", "org-1", sqlmock.AnyArg()).
		WillReturnRows(studentRows("s1"))

	_, err := repo.Dismiss(context.Background(), "org-1", "s1")
	require.NoError(t, err)
	_, err = repo.Restore(context.Background(), "org-1", "s1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntakeRepositoryMerge(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewIntakeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM students\s+WHERE id = \$1 AND org_id = \$2 AND needs_intake_approval = true FOR UPDATE`).
		WithArgs("src", "org-1").
		WillReturnRows(studentRows("src"))
	mock.ExpectQuery(`UPDATE students\s+SET name = \$3, national_id = \$4`).
		WillReturnRows(studentRows("tgt"))
	mock.ExpectExec(`UPDATE documents SET student_id = \$3`).
		WithArgs("org-1", "src", "tgt").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE session_reports SET student_id = \$3`).
		WithArgs("org-1", "src", "tgt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM students WHERE id = \$1 AND org_id = \$2`).
		WithArgs("src", "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.Merge(context.Background(), "org-1", "src", "tgt", models.MergePayload{
		Name: "Merged", Tags: []string{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "src", result.Source.ID)
	assert.Equal(t, "tgt", result.Target.ID)
	assert.False(t, result.Source.NeedsIntakeApproval)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntakeRepositoryMergeSourceGone(t *testing.T) {
	db, mock, cleanup := newIntakeMock(t)
	defer cleanup()
	repo := NewIntakeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM students\s+WHERE id = \$1 AND org_id = \$2 AND needs_intake_approval = true FOR UPDATE`).
		WithArgs("src", "org-1").
		WillReturnRows(studentRows())
	mock.ExpectRollback()

	_, err := repo.Merge(context.Background(), "org-1", "src", "tgt", models.MergePayload{})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
