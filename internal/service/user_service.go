package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

type userDirectoryRepository interface {
	FindWithEmployeeByID(ctx context.Context, id string) (*models.UserWithEmployee, error)
}

// UserService resolves account identity and the optional HR profile.
type UserService struct {
	repo   userDirectoryRepository
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userDirectoryRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// GetWithEmployee returns the account joined with its optional employee profile.
func (s *UserService) GetWithEmployee(ctx context.Context, userID string) (*models.UserWithEmployee, error) {
	user, err := s.repo.FindWithEmployeeByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// RegistrationDefaults resolves the pre-filled registration values for the
// acting user. Accounts with a linked profile get the full HR identity;
// unlinked accounts fall back to the username as the email address.
func (s *UserService) RegistrationDefaults(ctx context.Context, userID string) (*dto.RegistrationDefaults, error) {
	user, err := s.GetWithEmployee(ctx, userID)
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
