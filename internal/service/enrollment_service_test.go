package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unionportal/benefits-api/internal/models"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	active    []models.Enrollment
	activeErr error
	byID      map[string]*models.Enrollment
	details   map[string]*models.EnrollmentDetail
}

func (f *fakeEnrollmentRepo) ListActive(context.Context, time.Time) ([]models.Enrollment, error) {
	return f.active, f.activeErr
}

func (f *fakeEnrollmentRepo) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindDetailByID(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

type fakeRosterReader struct {
	rosters map[string][]models.Enrollee
}

func (f *fakeRosterReader) MapByEnrollmentIDs(_ context.Context, ids []string) (map[string][]models.Enrollee, error) {
	out := make(map[string][]models.Enrollee, len(ids))
	for _, id := range ids {
		if r, ok := f.rosters[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (f *fakeRosterReader) ListByEnrollment(_ context.Context, id string) ([]models.Enrollee, error) {
	return f.rosters[id], nil
}

func TestEnrollmentServiceListActiveWithRosters(t *testing.T) {
	repo := &fakeEnrollmentRepo{active: []models.Enrollment{{ID: "enr-1", Title: "Dental Plan"}, {ID: "enr-2", Title: "Gym"}}}
	rosters := &fakeRosterReader{rosters: map[string][]models.Enrollee{
		"enr-1": {{ID: "en-1", EmployeeNo: "E100"}},
	}}
	svc := NewEnrollmentService(repo, rosters, nil, 0, nil)

	items, err := svc.ListActiveWithRosters(context.Background())

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Dental Plan", items[0].Enrollment.Title)
	require.Len(t, items[0].Enrollees, 1)
	assert.Equal(t, "E100", items[0].Enrollees[0].EmployeeNo)
	assert.Empty(t, items[1].Enrollees)
}

func TestEnrollmentServiceGetDetailNotFound(t *testing.T) {
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeRosterReader{}, nil, 0, nil)

	_, err := svc.GetDetail(context.Background(), "missing")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRosterUnknownEnrollment(t *testing.T) {
	svc := NewEnrollmentService(&fakeEnrollmentRepo{}, &fakeRosterReader{}, nil, 0, nil)

	_, err := svc.Roster(context.Background(), "missing")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRoster(t *testing.T) {
	repo := &fakeEnrollmentRepo{byID: map[string]*models.Enrollment{"enr-1": {ID: "enr-1"}}}
	rosters := &fakeRosterReader{rosters: map[string][]models.Enrollee{
		"enr-1": {{EmployeeNo: "E100"}, {EmployeeNo: "E200"}},
	}}
	svc := NewEnrollmentService(repo, rosters, nil, 0, nil)

	enrollees, err := svc.Roster(context.Background(), "enr-1")

	require.NoError(t, err)
	assert.Len(t, enrollees, 2)
}
