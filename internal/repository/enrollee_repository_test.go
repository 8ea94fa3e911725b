package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/unionportal/benefits-api/internal/models"
)

func newEnrolleeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrolleeRepositoryExistsByEmployeeNo(t *testing.T) {
	db, mock, cleanup := newEnrolleeRepoMock(t)
	defer cleanup()
	repo := NewEnrolleeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollees WHERE enrollment_id = $1 AND employee_no = $2 LIMIT 1")).
		WithArgs("enr-1", "E100").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByEmployeeNo(context.Background(), "enr-1", "E100")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollees WHERE enrollment_id = $1 AND employee_no = $2 LIMIT 1")).
		WithArgs("enr-1", "E200").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByEmployeeNo(context.Background(), "enr-1", "E200")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolleeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newEnrolleeRepoMock(t)
	defer cleanup()
	repo := NewEnrolleeRepository(db)

	max := 10
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollees WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollees")).
		WithArgs(sqlmock.AnyArg(), "enr-1", "E100", "alice@corp.example", "Alice", "555-0100", sqlmock.AnyArg(), "user-1", "alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	enrollee := &models.Enrollee{
		EnrollmentID:      "enr-1",
		EmployeeNo:        "E100",
		EmailAddress:      "alice@corp.example",
		Name:              "Alice",
		PhoneNumber:       "555-0100",
		FieldInputs:       models.FieldInputs{"size": "L"},
		CreatedBy:         "user-1",
		CreatedByUsername: "alice",
	}
	require.NoError(t, repo.Create(context.Background(), enrollee, &max))
	require.NotEmpty(t, enrollee.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolleeRepositoryCreateRosterFull(t *testing.T) {
	db, mock, cleanup := newEnrolleeRepoMock(t)
	defer cleanup()
	repo := NewEnrolleeRepository(db)

	max := 2
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollees WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Enrollee{EnrollmentID: "enr-1", EmployeeNo: "E100"}, &max)
	require.ErrorIs(t, err, ErrRosterFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolleeRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newEnrolleeRepoMock(t)
	defer cleanup()
	repo := NewEnrolleeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("enr-1"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollees")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Enrollee{EnrollmentID: "enr-1", EmployeeNo: "E100"}, nil)
	require.ErrorIs(t, err, ErrDuplicateEnrollee)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrolleeRepositoryMapByEnrollmentIDs(t *testing.T) {
	db, mock, cleanup := newEnrolleeRepoMock(t)
	defer cleanup()
	repo := NewEnrolleeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "employee_no", "email_address", "name", "phone_number", "field_inputs", "created_by", "created_by_username", "created_at"}).
		AddRow("e-1", "enr-1", "E100", "a@corp.example", "A", "", []byte(`{}`), "u-1", "a", now).
		AddRow("e-2", "enr-1", "E200", "b@corp.example", "B", "", []byte(`{"size":"M"}`), "u-2", "b", now).
		AddRow("e-3", "enr-2", "E100", "a@corp.example", "A", "", []byte(`{}`), "u-1", "a", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollees WHERE enrollment_id IN ($1,$2)")).
		WithArgs("enr-1", "enr-2").
		WillReturnRows(rows)

	result, err := repo.MapByEnrollmentIDs(context.Background(), []string{"enr-1", "enr-2"})
	require.NoError(t, err)
	require.Len(t, result["enr-1"], 2)
	require.Len(t, result["enr-2"], 1)
	require.Equal(t, "M", result["enr-1"][1].FieldInputs["size"])
	require.NoError(t, mock.ExpectationsWereMet())
}
