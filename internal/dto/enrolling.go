package dto

import "github.com/unionportal/benefits-api/internal/models"

// FieldInputPrefix marks form entries carrying dynamic field answers, one
// entry per admin-configured question (e.g. "FieldInputs.dept=Eng").
const FieldInputPrefix = "FieldInputs."

// RegistrationDefaults are the form values pre-filled from the acting user's
// identity: full HR profile when linked, username-as-email otherwise.
type RegistrationDefaults struct {
	EmployeeNo   string `json:"employee_no"`
	EmailAddress string `json:"email_address"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
}

// EnrollSubmission is the registration payload posted for an enrollment.
// Dynamic inputs are parsed out of the form by prefix before validation.
type EnrollSubmission struct {
	EmployeeNo   string             `form:"EmployeeNo" validate:"required"`
	EmailAddress string             `form:"EmailAddress" validate:"required,email"`
	Name         string             `form:"Name" validate:"required"`
	PhoneNumber  string             `form:"PhoneNumber" validate:"required"`
	FieldInputs  models.FieldInputs `form:"-"`
}

// AdmissionResult is the discriminated outcome of one admission pipeline run.
// Exactly one outcome is set; callers render each outcome as a distinct state.
type AdmissionResult struct {
	Outcome     models.AdmissionOutcome  `json:"outcome"`
	Enrollment  *models.EnrollmentDetail `json:"enrollment,omitempty"`
	Defaults    *RegistrationDefaults    `json:"defaults,omitempty"`
	FieldErrors map[string]string        `json:"field_errors,omitempty"`
	Enrollee    *models.Enrollee         `json:"enrollee,omitempty"`
}

// EnrollmentListItem pairs an active enrollment with its current roster.
type EnrollmentListItem struct {
	Enrollment models.Enrollment `json:"enrollment"`
	Enrollees  []models.Enrollee `json:"enrollees"`
}
