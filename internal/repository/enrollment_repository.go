package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unionportal/benefits-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and their form schema.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListActive returns enrollments whose window contains now.
func (r *EnrollmentRepository) ListActive(ctx context.Context, now time.Time) ([]models.Enrollment, error) {
	const query = `SELECT id, title, description, open_from, open_until, active, self_enrollment_only, max_enrollee_count, created_at, updated_at
        FROM enrollments
        WHERE active = TRUE AND open_from <= $1 AND open_until >= $1
        ORDER BY open_from DESC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, now); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, title, description, open_from, open_until, active, self_enrollment_only, max_enrollee_count, created_at, updated_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment eagerly loaded with its fields, their
// choices and the current roster size.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	const fieldQuery = `SELECT id, enrollment_id, key, label, required, position
        FROM enrollment_fields WHERE enrollment_id = $1 ORDER BY position`
	var fields []models.EnrollmentField
	if err := r.db.SelectContext(ctx, &fields, fieldQuery, id); err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("load enrollment fields: %w", err)
	}

	if len(fields) > 0 {
		const choiceQuery = `SELECT c.id, c.field_id, c.value
            FROM field_choices c
            JOIN enrollment_fields f ON f.id = c.field_id
            WHERE f.enrollment_id = $1
            ORDER BY c.value`
		var choices []models.FieldChoice
		if err := r.db.SelectContext(ctx, &choices, choiceQuery, id); err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("load field choices: %w", err)
		}
		byField := make(map[string][]models.FieldChoice, len(fields))
		for _, c := range choices {
			byField[c.FieldID] = append(byField[c.FieldID], c)
		}
		for i := range fields {
			fields[i].Choices = byField[fields[i].ID]
		}
	}

	const countQuery = `SELECT COUNT(*) FROM enrollees WHERE enrollment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, countQuery, id); err != nil {
		return nil, fmt.Errorf("count enrollees: %w", err)
	}

	return &models.EnrollmentDetail{Enrollment: *enrollment, Fields: fields, EnrolleeCount: count}, nil
}
