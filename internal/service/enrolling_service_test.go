package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	"github.com/unionportal/benefits-api/internal/repository"
)

type fakeDetailReader struct {
	details map[string]*models.EnrollmentDetail
}

func (f *fakeDetailReader) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := f.details[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type fakeEnrolleeWriter struct {
	existing  map[string]bool
	created   []models.Enrollee
	createErr error
}

func (f *fakeEnrolleeWriter) ExistsByEmployeeNo(ctx context.Context, enrollmentID, employeeNo string) (bool, error) {
	return f.existing[enrollmentID+"/"+employeeNo], nil
}

func (f *fakeEnrolleeWriter) Create(ctx context.Context, enrollee *models.Enrollee, maxCount *int) error {
	if f.createErr != nil {
		return f.createErr
	}
	enrollee.ID = "enrollee-1"
	f.created = append(f.created, *enrollee)
	return nil
}

type fakeIdentity struct {
	users map[string]*models.UserWithEmployee
}

func (f *fakeIdentity) GetWithEmployee(ctx context.Context, userID string) (*models.UserWithEmployee, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeIdentity) RegistrationDefaults(ctx context.Context, userID string) (*dto.RegistrationDefaults, error) {
	user, err := f.GetWithEmployee(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile, ok := user.Profile(); ok {
		return &dto.RegistrationDefaults{
			EmployeeNo:   profile.No,
			EmailAddress: profile.EmailAddress,
			Name:         profile.ChineseName,
			PhoneNumber:  profile.PhoneNumber,
		}, nil
	}
	return &dto.RegistrationDefaults{EmailAddress: user.Username}, nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) InvalidateListings(ctx context.Context) { f.calls++ }

type fakeAudit struct {
	logs []models.AuditLog
}

func (f *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func linkedUser(id, username, employeeNo string) *models.UserWithEmployee {
	return &models.UserWithEmployee{
		User:           models.User{ID: id, Username: username, Role: models.RoleEmployee, Active: true},
		EmployeeNo:     &employeeNo,
		EmployeeEmail:  strPtr(username + "@corp.example"),
		EmployeeName:   strPtr("Employee " + employeeNo),
		EmployeePhone:  strPtr("555-0100"),
		EmployeePoints: new(float64),
	}
}

func openEnrollment(id string) *models.EnrollmentDetail {
	now := time.Now().UTC()
	return &models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:        id,
			Title:     "Annual Health Check",
			OpenFrom:  now.Add(-time.Hour),
			OpenUntil: now.Add(time.Hour),
			Active:    true,
		},
	}
}

func newEnrollingService(details *fakeDetailReader, enrollees *fakeEnrolleeWriter, identity *fakeIdentity) (*EnrollingService, *fakeInvalidator, *fakeAudit) {
	invalidator := &fakeInvalidator{}
	audit := &fakeAudit{}
	svc := NewEnrollingService(details, enrollees, identity, invalidator, audit, nil, validator.New(), zap.NewNop())
	return svc, invalidator, audit
}

func validSubmission(employeeNo string) dto.EnrollSubmission {
	return dto.EnrollSubmission{
		EmployeeNo:   employeeNo,
		EmailAddress: "someone@corp.example",
		Name:         "Someone",
		PhoneNumber:  "555-0100",
		FieldInputs:  models.FieldInputs{},
	}
}

func TestSubmitNotReadyWinsOverEverything(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.Active = false
	detail.MaxEnrolleeCount = intPtr(0)
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{existing: map[string]bool{"enr-1/E100": true}}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	result, err := svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionNotReady, result.Outcome)
}

func TestSubmitWindowBoundsAreInclusive(t *testing.T) {
	now := time.Now().UTC()
	detail := openEnrollment("enr-1")
	detail.OpenFrom = now
	detail.OpenUntil = now
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)
	svc.now = func() time.Time { return now }

	result, err := svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionEnrolled, result.Outcome)
}

func TestSubmitCapacityBoundary(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.MaxEnrolleeCount = intPtr(2)
	detail.EnrolleeCount = 2
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	result, err := svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionCapacityExceeded, result.Outcome)

	detail.EnrolleeCount = 1
	result, err = svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionEnrolled, result.Outcome)
}

func TestSubmitAlreadyEnrolledChecksSubmittedNumber(t *testing.T) {
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": openEnrollment("enr-1")}}
	enrollees := &fakeEnrolleeWriter{existing: map[string]bool{"enr-1/E200": true}}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	result, err := svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E200"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionAlreadyEnrolled, result.Outcome)
}

func TestSubmitSelfEnrollmentOnlyRejectsOtherEmployee(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.SelfEnrollmentOnly = true
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	result, err := svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E200"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionSelfEnrollmentOnly, result.Outcome)
}

func TestSubmitSelfEnrollmentOnlyRejectsUnlinkedAccount(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.SelfEnrollmentOnly = true
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{
		"u1": {User: models.User{ID: "u1", Username: "contractor", Role: models.RoleEmployee, Active: true}},
	}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	result, err := svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionSelfEnrollmentOnly, result.Outcome)
}

func TestSubmitValidationFailedOnChoiceMismatch(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.Fields = []models.EnrollmentField{
		{ID: "f-1", EnrollmentID: "enr-1", Key: "size", Label: "Shirt size", Required: true, Position: 1,
			Choices: []models.FieldChoice{{ID: "c-1", FieldID: "f-1", Value: "M"}, {ID: "c-2", FieldID: "f-1", Value: "L"}}},
	}
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	submission := validSubmission("E100")
	submission.FieldInputs = models.FieldInputs{"size": "XXL"}
	result, err := svc.Submit(context.Background(), "enr-1", "u1", submission)
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionValidationFailed, result.Outcome)
	assert.Contains(t, result.FieldErrors, "size")
	assert.Empty(t, enrollees.created)
}

func TestSubmitValidationFailedOnMissingRequiredField(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.Fields = []models.EnrollmentField{
		{ID: "f-1", EnrollmentID: "enr-1", Key: "dept", Label: "Department", Required: true, Position: 1},
	}
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	submission := validSubmission("E100")
	submission.EmailAddress = "not-an-email"
	result, err := svc.Submit(context.Background(), "enr-1", "u1", submission)
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionValidationFailed, result.Outcome)
	assert.Contains(t, result.FieldErrors, "dept")
	assert.Contains(t, result.FieldErrors, "EmailAddress")
}

func TestSubmitSuccessStoresInputsAndSideEffects(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.Fields = []models.EnrollmentField{
		{ID: "f-1", EnrollmentID: "enr-1", Key: "dept", Label: "Department", Required: true, Position: 1},
		{ID: "f-2", EnrollmentID: "enr-1", Key: "size", Label: "Shirt size", Required: false, Position: 2,
			Choices: []models.FieldChoice{{ID: "c-1", FieldID: "f-2", Value: "M"}, {ID: "c-2", FieldID: "f-2", Value: "L"}}},
	}
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, invalidator, audit := newEnrollingService(details, enrollees, identity)

	submission := validSubmission("E100")
	submission.FieldInputs = models.FieldInputs{"dept": "Eng", "size": "L", "unknown": "dropped"}
	result, err := svc.Submit(context.Background(), "enr-1", "u1", submission)
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionEnrolled, result.Outcome)
	require.Len(t, enrollees.created, 1)

	created := enrollees.created[0]
	assert.Equal(t, "E100", created.EmployeeNo)
	assert.Equal(t, models.FieldInputs{"dept": "Eng", "size": "L"}, created.FieldInputs)
	assert.Equal(t, "u1", created.CreatedBy)
	assert.Equal(t, "alice", created.CreatedByUsername)

	assert.Equal(t, 1, invalidator.calls)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionEnrolleeCreate, audit.logs[0].Action)
}

func TestSubmitMapsInsertRaceToOutcomes(t *testing.T) {
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": openEnrollment("enr-1")}}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}

	enrollees := &fakeEnrolleeWriter{createErr: repository.ErrRosterFull}
	svc, _, _ := newEnrollingService(details, enrollees, identity)
	result, err := svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionCapacityExceeded, result.Outcome)

	enrollees.createErr = repository.ErrDuplicateEnrollee
	result, err = svc.Submit(context.Background(), "enr-1", "u1", validSubmission("E100"))
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionAlreadyEnrolled, result.Outcome)
}

func TestSubmitUnknownEnrollment(t *testing.T) {
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{}}
	svc, _, _ := newEnrollingService(details, &fakeEnrolleeWriter{}, &fakeIdentity{})

	_, err := svc.Submit(context.Background(), "missing", "u1", validSubmission("E100"))
	require.Error(t, err)
}

func TestPreviewEligibleWithProfileDefaults(t *testing.T) {
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": openEnrollment("enr-1")}}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, &fakeEnrolleeWriter{}, identity)

	result, err := svc.Preview(context.Background(), "enr-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionEligible, result.Outcome)
	require.NotNil(t, result.Defaults)
	assert.Equal(t, "E100", result.Defaults.EmployeeNo)
	assert.Equal(t, "alice@corp.example", result.Defaults.EmailAddress)
}

func TestPreviewUsernameFallbackForUnlinkedAccount(t *testing.T) {
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": openEnrollment("enr-1")}}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{
		"u1": {User: models.User{ID: "u1", Username: "bob@corp.example", Role: models.RoleEmployee, Active: true}},
	}}
	svc, _, _ := newEnrollingService(details, &fakeEnrolleeWriter{}, identity)

	result, err := svc.Preview(context.Background(), "enr-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionEligible, result.Outcome)
	assert.Equal(t, "bob@corp.example", result.Defaults.EmailAddress)
	assert.Empty(t, result.Defaults.EmployeeNo)
}

func TestPreviewSelfEnrollmentOnlyShowsAlreadyEnrolled(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.SelfEnrollmentOnly = true
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	enrollees := &fakeEnrolleeWriter{existing: map[string]bool{"enr-1/E100": true}}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	result, err := svc.Preview(context.Background(), "enr-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionAlreadyEnrolled, result.Outcome)
}

func TestPreviewOpenEnrollmentIgnoresViewerRoster(t *testing.T) {
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": openEnrollment("enr-1")}}
	enrollees := &fakeEnrolleeWriter{existing: map[string]bool{"enr-1/E100": true}}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _, _ := newEnrollingService(details, enrollees, identity)

	result, err := svc.Preview(context.Background(), "enr-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionEligible, result.Outcome)
}

func TestPreviewNotReady(t *testing.T) {
	detail := openEnrollment("enr-1")
	detail.OpenFrom = time.Now().UTC().Add(time.Hour)
	details := &fakeDetailReader{details: map[string]*models.EnrollmentDetail{"enr-1": detail}}
	svc, _, _ := newEnrollingService(details, &fakeEnrolleeWriter{}, &fakeIdentity{})

	result, err := svc.Preview(context.Background(), "enr-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AdmissionNotReady, result.Outcome)
}
