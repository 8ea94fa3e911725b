package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/unionportal/benefits-api/internal/models"
)

// Sentinel errors surfaced by Create so the service layer can map races to
// the same admission outcomes as the read-path guards.
var (
	ErrDuplicateEnrollee = errors.New("employee already enrolled")
	ErrRosterFull        = errors.New("enrollment roster full")
)

const pqUniqueViolation = "23505"

// EnrolleeRepository handles persistence of enrollee registrations.
type EnrolleeRepository struct {
	db *sqlx.DB
}

// NewEnrolleeRepository constructs the repository.
func NewEnrolleeRepository(db *sqlx.DB) *EnrolleeRepository {
	return &EnrolleeRepository{db: db}
}

// ExistsByEmployeeNo checks whether an employee already appears on the roster.
func (r *EnrolleeRepository) ExistsByEmployeeNo(ctx context.Context, enrollmentID, employeeNo string) (bool, error) {
	const query = `SELECT 1 FROM enrollees WHERE enrollment_id = $1 AND employee_no = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, employeeNo); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollee exists: %w", err)
	}
	return true, nil
}

// CountByEnrollment returns the current roster size.
func (r *EnrolleeRepository) CountByEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollees WHERE enrollment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, enrollmentID); err != nil {
		return 0, fmt.Errorf("count enrollees: %w", err)
	}
	return count, nil
}

// ListByEnrollment returns the roster of one enrollment.
func (r *EnrolleeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Enrollee, error) {
	const query = `SELECT id, enrollment_id, employee_no, email_address, name, phone_number, field_inputs, created_by, created_by_username, created_at
        FROM enrollees WHERE enrollment_id = $1 ORDER BY created_at`
	var enrollees []models.Enrollee
	if err := r.db.SelectContext(ctx, &enrollees, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollees: %w", err)
	}
	return enrollees, nil
}

// MapByEnrollmentIDs returns rosters for several enrollments keyed by id.
func (r *EnrolleeRepository) MapByEnrollmentIDs(ctx context.Context, enrollmentIDs []string) (map[string][]models.Enrollee, error) {
	result := make(map[string][]models.Enrollee, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(enrollmentIDs))
	args := make([]interface{}, len(enrollmentIDs))
	for i, id := range enrollmentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, enrollment_id, employee_no, email_address, name, phone_number, field_inputs, created_by, created_by_username, created_at
        FROM enrollees WHERE enrollment_id IN (%s) ORDER BY created_at`, strings.Join(placeholders, ","))

	var enrollees []models.Enrollee
	if err := r.db.SelectContext(ctx, &enrollees, query, args...); err != nil {
		return nil, fmt.Errorf("map enrollees: %w", err)
	}
	for _, e := range enrollees {
		result[e.EnrollmentID] = append(result[e.EnrollmentID], e)
	}
	return result, nil
}

// Create appends one registration inside a transaction. The enrollment row is
// locked so the capacity re-check and insert are atomic against concurrent
// submissions; the unique index on (enrollment_id, employee_no) closes the
// duplicate race. maxCount nil means unbounded.
func (r *EnrolleeRepository) Create(ctx context.Context, enrollee *models.Enrollee, maxCount *int) error {
	if enrollee.ID == "" {
		enrollee.ID = uuid.NewString()
	}
	if enrollee.CreatedAt.IsZero() {
		enrollee.CreatedAt = time.Now().UTC()
	}
	if enrollee.FieldInputs == nil {
		enrollee.FieldInputs = models.FieldInputs{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollee tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM enrollments WHERE id = $1 FOR UPDATE`, enrollee.EnrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}

	if maxCount != nil {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollees WHERE enrollment_id = $1`, enrollee.EnrollmentID); err != nil {
			return fmt.Errorf("recount enrollees: %w", err)
		}
		if count >= *maxCount {
			return ErrRosterFull
		}
	}

	const insert = `INSERT INTO enrollees (id, enrollment_id, employee_no, email_address, name, phone_number, field_inputs, created_by, created_by_username, created_at)
        VALUES (:id, :enrollment_id, :employee_no, :email_address, :name, :phone_number, :field_inputs, :created_by, :created_by_username, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollee); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateEnrollee
		}
		return fmt.Errorf("create enrollee: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollee tx: %w", err)
	}
	return nil
}
