package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/models"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

type fakeUserDirectory struct {
	users map[string]*models.UserWithEmployee
}

func (f *fakeUserDirectory) FindWithEmployeeByID(ctx context.Context, id string) (*models.UserWithEmployee, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func TestRegistrationDefaultsFromProfile(t *testing.T) {
	repo := &fakeUserDirectory{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc := NewUserService(repo, zap.NewNop())

	defaults, err := svc.RegistrationDefaults(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "E100", defaults.EmployeeNo)
	assert.Equal(t, "alice@corp.example", defaults.EmailAddress)
	assert.Equal(t, "Employee E100", defaults.Name)
	assert.Equal(t, "555-0100", defaults.PhoneNumber)
}

func TestRegistrationDefaultsUsernameFallback(t *testing.T) {
	repo := &fakeUserDirectory{users: map[string]*models.UserWithEmployee{
		"u1": {User: models.User{ID: "u1", Username: "bob@corp.example", Role: models.RoleEmployee, Active: true}},
	}}
	svc := NewUserService(repo, zap.NewNop())

	defaults, err := svc.RegistrationDefaults(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, defaults.EmployeeNo)
	assert.Equal(t, "bob@corp.example", defaults.EmailAddress)
	assert.Empty(t, defaults.Name)
}

func TestRegistrationDefaultsUnknownUser(t *testing.T) {
	svc := NewUserService(&fakeUserDirectory{}, zap.NewNop())

	_, err := svc.RegistrationDefaults(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
