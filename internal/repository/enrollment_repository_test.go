package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentColumns() []string {
	return []string{"id", "title", "description", "open_from", "open_until", "active", "self_enrollment_only", "max_enrollee_count", "created_at", "updated_at"}
}

func TestEnrollmentRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(enrollmentColumns()).
		AddRow("enr-1", "Annual Health Check", "", now.Add(-time.Hour), now.Add(time.Hour), true, false, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments")).
		WithArgs(now).
		WillReturnRows(rows)

	enrollments, err := repo.ListActive(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, "Annual Health Check", enrollments[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows(enrollmentColumns()).
			AddRow("enr-1", "Team Building Day", "Outdoor event", now.Add(-time.Hour), now.Add(time.Hour), true, true, 30, now, now))

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_fields WHERE enrollment_id = $1 ORDER BY position")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrollment_id", "key", "label", "required", "position"}).
			AddRow("f-1", "enr-1", "size", "Shirt size", true, 1).
			AddRow("f-2", "enr-1", "diet", "Dietary needs", false, 2))

	mock.ExpectQuery(regexp.QuoteMeta("FROM field_choices c")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "field_id", "value"}).
			AddRow("c-1", "f-1", "L").
			AddRow("c-2", "f-1", "M"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollees WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	detail, err := repo.FindDetailByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, 12, detail.EnrolleeCount)
	require.Len(t, detail.Fields, 2)
	require.Len(t, detail.Fields[0].Choices, 2)
	require.Empty(t, detail.Fields[1].Choices)
	require.NoError(t, mock.ExpectationsWereMet())
}
