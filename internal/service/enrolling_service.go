package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	"github.com/unionportal/benefits-api/internal/repository"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

type enrollmentDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type enrolleeWriter interface {
	ExistsByEmployeeNo(ctx context.Context, enrollmentID, employeeNo string) (bool, error)
	Create(ctx context.Context, enrollee *models.Enrollee, maxCount *int) error
}

type identityResolver interface {
	GetWithEmployee(ctx context.Context, userID string) (*models.UserWithEmployee, error)
	RegistrationDefaults(ctx context.Context, userID string) (*dto.RegistrationDefaults, error)
}

type listingInvalidator interface {
	InvalidateListings(ctx context.Context)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type confirmationSender interface {
	SendEnrollmentConfirmation(enrollment *models.Enrollment, enrollee *models.Enrollee) error
}

// EnrollingService runs the admission pipeline for enrollment registrations.
// Guard checks run in a fixed order and the first failing guard decides the
// outcome; later guards are never evaluated.
type EnrollingService struct {
	enrollments enrollmentDetailReader
	enrollees   enrolleeWriter
	identity    identityResolver
	listings    listingInvalidator
	audit       auditRecorder
	mailer      confirmationSender
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollingService constructs an EnrollingService.
func NewEnrollingService(enrollments enrollmentDetailReader, enrollees enrolleeWriter, identity identityResolver, listings listingInvalidator, audit auditRecorder, mailer confirmationSender, validate *validator.Validate, logger *zap.Logger) *EnrollingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollingService{
		enrollments: enrollments,
		enrollees:   enrollees,
		identity:    identity,
		listings:    listings,
		audit:       audit,
		mailer:      mailer,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IsReadyForEnrolling reports whether the enrollment accepts registrations at
// the given instant. Both window bounds are inclusive.
func (s *EnrollingService) IsReadyForEnrolling(enrollment *models.Enrollment, at time.Time) bool {
	if enrollment == nil || !enrollment.Active {
		return false
	}
	return !at.Before(enrollment.OpenFrom) && !at.After(enrollment.OpenUntil)
}

// ExceedsMaxCountOfEnrollees reports whether the roster is at or over its
// configured limit. Enrollments without a limit never exceed.
func (s *EnrollingService) ExceedsMaxCountOfEnrollees(detail *models.EnrollmentDetail) bool {
	if detail == nil || detail.MaxEnrolleeCount == nil {
		return false
	}
	return detail.EnrolleeCount >= *detail.MaxEnrolleeCount
}

// IsAlreadyEnrolled checks the roster for the given employee number.
func (s *EnrollingService) IsAlreadyEnrolled(ctx context.Context, enrollmentID, employeeNo string) (bool, error) {
	if employeeNo == "" {
		return false, nil
	}
	return s.enrollees.ExistsByEmployeeNo(ctx, enrollmentID, employeeNo)
}

// Preview resolves the registration form state for the acting user. The
// guards run in order: readiness, capacity, then duplicate detection against
// the viewer's own employee number when the enrollment is self-service only.
func (s *EnrollingService) Preview(ctx context.Context, enrollmentID, userID string) (*dto.AdmissionResult, error) {
	detail, err := s.loadDetail(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	if !s.IsReadyForEnrolling(&detail.Enrollment, s.now()) {
		return &dto.AdmissionResult{Outcome: models.AdmissionNotReady, Enrollment: detail}, nil
	}
	if s.ExceedsMaxCountOfEnrollees(detail) {
		return &dto.AdmissionResult{Outcome: models.AdmissionCapacityExceeded, Enrollment: detail}, nil
	}

	defaults, err := s.identity.RegistrationDefaults(ctx, userID)
	if err != nil {
		return nil, err
	}

	if detail.SelfEnrollmentOnly {
		enrolled, err := s.IsAlreadyEnrolled(ctx, enrollmentID, defaults.EmployeeNo)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster")
		}
		if enrolled {
			return &dto.AdmissionResult{Outcome: models.AdmissionAlreadyEnrolled, Enrollment: detail}, nil
		}
	}

	return &dto.AdmissionResult{Outcome: models.AdmissionEligible, Enrollment: detail, Defaults: defaults}, nil
}

// Submit runs the full admission pipeline for a posted registration. Guard
// order: readiness, capacity, duplicate against the submitted employee
// number, self-service identity match, then field validation. The insert
// re-checks capacity and uniqueness under lock so losers of a race surface
// the same outcomes as the up-front guards.
func (s *EnrollingService) Submit(ctx context.Context, enrollmentID, userID string, submission dto.EnrollSubmission) (*dto.AdmissionResult, error) {
	detail, err := s.loadDetail(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	if !s.IsReadyForEnrolling(&detail.Enrollment, s.now()) {
		return &dto.AdmissionResult{Outcome: models.AdmissionNotReady, Enrollment: detail}, nil
	}
	if s.ExceedsMaxCountOfEnrollees(detail) {
		return &dto.AdmissionResult{Outcome: models.AdmissionCapacityExceeded, Enrollment: detail}, nil
	}

	enrolled, err := s.IsAlreadyEnrolled(ctx, enrollmentID, submission.EmployeeNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roster")
	}
	if enrolled {
		return &dto.AdmissionResult{Outcome: models.AdmissionAlreadyEnrolled, Enrollment: detail}, nil
	}

	user, err := s.identity.GetWithEmployee(ctx, userID)
	if err != nil {
		return nil, err
	}
	if detail.SelfEnrollmentOnly {
		profile, ok := user.Profile()
		if !ok || profile.No != submission.EmployeeNo {
			return &dto.AdmissionResult{Outcome: models.AdmissionSelfEnrollmentOnly, Enrollment: detail}, nil
		}
	}

	if fieldErrors := s.validate(detail, &submission); len(fieldErrors) > 0 {
		return &dto.AdmissionResult{Outcome: models.AdmissionValidationFailed, Enrollment: detail, FieldErrors: fieldErrors}, nil
	}

	enrollee := &models.Enrollee{
		EnrollmentID:      enrollmentID,
		EmployeeNo:        submission.EmployeeNo,
		EmailAddress:      submission.EmailAddress,
		Name:              submission.Name,
		PhoneNumber:       submission.PhoneNumber,
		FieldInputs:       submission.FieldInputs,
		CreatedBy:         user.ID,
		CreatedByUsername: user.Username,
	}

	if err := s.enrollees.Create(ctx, enrollee, detail.MaxEnrolleeCount); err != nil {
		switch {
		case errors.Is(err, repository.ErrRosterFull):
			return &dto.AdmissionResult{Outcome: models.AdmissionCapacityExceeded, Enrollment: detail}, nil
		case errors.Is(err, repository.ErrDuplicateEnrollee):
			return &dto.AdmissionResult{Outcome: models.AdmissionAlreadyEnrolled, Enrollment: detail}, nil
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollee")
		}
	}

	s.listings.InvalidateListings(ctx)

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionEnrolleeCreate,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
		NewValues:  []byte(fmt.Sprintf(`{"employee_no":%q}`, enrollee.EmployeeNo)),
	}); err != nil {
		s.logger.Warn("failed to record enrollee audit log", zap.Error(err))
	}

	if s.mailer != nil {
		go func(enrollment models.Enrollment, created models.Enrollee) {
			if err := s.mailer.SendEnrollmentConfirmation(&enrollment, &created); err != nil {
				s.logger.Warn("failed to send enrollment confirmation",
					zap.String("enrollment_id", enrollment.ID),
					zap.String("employee_no", created.EmployeeNo),
					zap.Error(err))
			}
		}(detail.Enrollment, *enrollee)
	}

	return &dto.AdmissionResult{Outcome: models.AdmissionEnrolled, Enrollment: detail, Enrollee: enrollee}, nil
}

func (s *EnrollingService) loadDetail(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// validate checks the fixed identity fields and the admin-configured dynamic
// fields. Unknown dynamic keys are dropped rather than rejected.
func (s *EnrollingService) validate(detail *models.EnrollmentDetail, submission *dto.EnrollSubmission) map[string]string {
	fieldErrors := make(map[string]string)

	if err := s.validator.Struct(submission); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			for _, fe := range invalid {
				switch fe.Tag() {
				case "required":
					fieldErrors[fe.Field()] = "is required"
				case "email":
					fieldErrors[fe.Field()] = "must be a valid email address"
				default:
					fieldErrors[fe.Field()] = "is invalid"
				}
			}
		} else {
			fieldErrors["_"] = "invalid submission"
		}
	}

	known := make(models.FieldInputs, len(detail.Fields))
	for _, field := range detail.Fields {
		value, present := submission.FieldInputs[field.Key]
		if field.Required && value == "" {
			fieldErrors[field.Key] = "is required"
			continue
		}
		if !present {
			continue
		}
		if len(field.Choices) > 0 && value != "" {
			valid := false
			for _, choice := range field.Choices {
				if choice.Value == value {
					valid = true
					break
				}
			}
			if !valid {
				fieldErrors[field.Key] = "is not an allowed choice"
				continue
			}
		}
		known[field.Key] = value
	}
	submission.FieldInputs = known

	return fieldErrors
}
