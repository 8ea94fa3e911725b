package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/models"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

const activityCacheKey = "portal:activity:active"

type activityRepository interface {
	FindActive(ctx context.Context, now time.Time) (*models.Activity, error)
	ListProducts(ctx context.Context, activityID string) ([]models.Product, error)
	FindProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
}

// ActivityService serves the point-redemption campaign and its catalog.
type ActivityService struct {
	repo   activityRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo activityRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// GetActive returns the activity currently inside its window together with
// its product catalog. A nil detail with nil error means no activity is live,
// which the portal renders as an empty exchange section rather than a failure.
func (s *ActivityService) GetActive(ctx context.Context) (*models.ActivityDetail, error) {
	if s.cache.Enabled() {
		var cached models.ActivityDetail
		if hit, _ := s.cache.Get(ctx, activityCacheKey, &cached); hit {
			return &cached, nil
		}
	}

	activity, err := s.repo.FindActive(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active activity")
	}

	products, err := s.repo.ListProducts(ctx, activity.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load products")
	}

	detail := &models.ActivityDetail{Activity: *activity, Products: products}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, activityCacheKey, detail, s.ttl); err != nil {
			s.logger.Debug("activity cache write failed", zap.Error(err))
		}
	}
	return detail, nil
}

// ProductsByIDs loads catalog entries by identifier, keyed by id.
func (s *ActivityService) ProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	products, err := s.repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load products")
	}
	return products, nil
}
