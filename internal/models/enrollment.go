package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Enrollment is an administrator-defined event employees register for.
// Readiness is derived from the window and active flag, never stored.
type Enrollment struct {
	ID                 string    `db:"id" json:"id"`
	Title              string    `db:"title" json:"title"`
	Description        string    `db:"description" json:"description"`
	OpenFrom           time.Time `db:"open_from" json:"open_from"`
	OpenUntil          time.Time `db:"open_until" json:"open_until"`
	Active             bool      `db:"active" json:"active"`
	SelfEnrollmentOnly bool      `db:"self_enrollment_only" json:"self_enrollment_only"`
	MaxEnrolleeCount   *int      `db:"max_enrollee_count" json:"max_enrollee_count,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentField is one admin-configured question on the registration form.
type EnrollmentField struct {
	ID           string        `db:"id" json:"id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	Key          string        `db:"key" json:"key"`
	Label        string        `db:"label" json:"label"`
	Required     bool          `db:"required" json:"required"`
	Position     int           `db:"position" json:"position"`
	Choices      []FieldChoice `db:"-" json:"choices,omitempty"`
}

// FieldChoice is one allowed answer for a field. A field without choices
// accepts free text.
type FieldChoice struct {
	ID      string `db:"id" json:"id"`
	FieldID string `db:"field_id" json:"field_id"`
	Value   string `db:"value" json:"value"`
}

// EnrollmentDetail is an enrollment eagerly loaded with its form schema and
// the current size of its roster.
type EnrollmentDetail struct {
	Enrollment
	Fields        []EnrollmentField `db:"-" json:"fields"`
	EnrolleeCount int               `db:"-" json:"enrollee_count"`
}

// FieldInputs maps a field key to the submitted answer. Stored as JSONB.
type FieldInputs map[string]string

// Value implements driver.Valuer for JSONB persistence.
func (f FieldInputs) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FieldInputs) Scan(src interface{}) error {
	if src == nil {
		*f = FieldInputs{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported field inputs type %T", src)
	}
}

// Enrollee is one employee's registration against an enrollment.
// Immutable once created; the creator identity is kept for audit.
type Enrollee struct {
	ID                string      `db:"id" json:"id"`
	EnrollmentID      string      `db:"enrollment_id" json:"enrollment_id"`
	EmployeeNo        string      `db:"employee_no" json:"employee_no"`
	EmailAddress      string      `db:"email_address" json:"email_address"`
	Name              string      `db:"name" json:"name"`
	PhoneNumber       string      `db:"phone_number" json:"phone_number"`
	FieldInputs       FieldInputs `db:"field_inputs" json:"field_inputs"`
	CreatedBy         string      `db:"created_by" json:"created_by"`
	CreatedByUsername string      `db:"created_by_username" json:"created_by_username"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
}

// AdmissionOutcome is the discriminated result of the admission pipeline.
// Guard failures are data routed to distinct presentation states, not errors.
type AdmissionOutcome string

const (
	// AdmissionEligible is the preview-path pass state: the form may be shown.
	AdmissionEligible AdmissionOutcome = "ELIGIBLE"
	// AdmissionEnrolled is the submit-path success state.
	AdmissionEnrolled           AdmissionOutcome = "ENROLLED"
	AdmissionNotReady           AdmissionOutcome = "NOT_READY"
	AdmissionCapacityExceeded   AdmissionOutcome = "CAPACITY_EXCEEDED"
	AdmissionAlreadyEnrolled    AdmissionOutcome = "ALREADY_ENROLLED"
	AdmissionSelfEnrollmentOnly AdmissionOutcome = "SELF_ENROLLMENT_ONLY"
	AdmissionValidationFailed   AdmissionOutcome = "VALIDATION_FAILED"
)
