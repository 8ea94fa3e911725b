package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

const (
	enrollmentListCacheKey = "portal:enrollments:active"
	enrollmentCachePattern = "portal:enrollments:*"
)

type enrollmentRepository interface {
	ListActive(ctx context.Context, now time.Time) ([]models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type enrolleeRosterReader interface {
	MapByEnrollmentIDs(ctx context.Context, enrollmentIDs []string) (map[string][]models.Enrollee, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Enrollee, error)
}

// EnrollmentService serves enrollment listings and form schemas.
type EnrollmentService struct {
	repo      enrollmentRepository
	enrollees enrolleeRosterReader
	cache     *CacheService
	ttl       time.Duration
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, enrollees enrolleeRosterReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, enrollees: enrollees, cache: cache, ttl: ttl, logger: logger}
}

// ListActiveWithRosters returns open enrollments paired with their current
// rosters, the payload the portal landing page renders.
func (s *EnrollmentService) ListActiveWithRosters(ctx context.Context) ([]dto.EnrollmentListItem, error) {
	if s.cache.Enabled() {
		var cached []dto.EnrollmentListItem
		if hit, _ := s.cache.Get(ctx, enrollmentListCacheKey, &cached); hit {
			return cached, nil
		}
	}

	enrollments, err := s.repo.ListActive(ctx, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	ids := make([]string, len(enrollments))
	for i, e := range enrollments {
		ids[i] = e.ID
	}
	rosters, err := s.enrollees.MapByEnrollmentIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rosters")
	}

	items := make([]dto.EnrollmentListItem, len(enrollments))
	for i, e := range enrollments {
		items[i] = dto.EnrollmentListItem{Enrollment: e, Enrollees: rosters[e.ID]}
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, enrollmentListCacheKey, items, s.ttl); err != nil {
			s.logger.Debug("enrollment cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

// GetDetail returns one enrollment with fields, choices and roster size.
func (s *EnrollmentService) GetDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Roster returns the registrations of one enrollment.
func (s *EnrollmentService) Roster(ctx context.Context, id string) ([]models.Enrollee, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	enrollees, err := s.enrollees.ListByEnrollment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return enrollees, nil
}

// InvalidateListings drops cached enrollment payloads after a roster change.
func (s *EnrollmentService) InvalidateListings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, enrollmentCachePattern); err != nil {
		s.logger.Debug("enrollment cache invalidation failed", zap.Error(err))
	}
}
