package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unionportal/benefits-api/internal/models"
)

// ActivityRepository handles persistence of promotional activities.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// FindActive returns the activity currently inside its window, if any.
// At most one activity is expected to be active at a time.
func (r *ActivityRepository) FindActive(ctx context.Context, now time.Time) (*models.Activity, error) {
	const query = `SELECT id, name, description, begin_time, end_time, active, created_at, updated_at
        FROM activities
        WHERE active = TRUE AND begin_time <= $1 AND end_time >= $1
        ORDER BY begin_time DESC LIMIT 1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, now); err != nil {
		return nil, err
	}
	return &activity, nil
}

// ListProducts returns the product catalog of an activity.
func (r *ActivityRepository) ListProducts(ctx context.Context, activityID string) ([]models.Product, error) {
	const query = `SELECT id, activity_id, name, description, bonus_point_price, money_price
        FROM products WHERE activity_id = $1 ORDER BY name`
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, activityID); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// FindProductsByIDs fetches products by identifier, keyed by id.
func (r *ActivityRepository) FindProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	if len(ids) == 0 {
		return map[string]models.Product{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, activity_id, name, description, bonus_point_price, money_price
        FROM products WHERE id IN (%s)`, strings.Join(placeholders, ","))

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return map[string]models.Product{}, nil
		}
		return nil, fmt.Errorf("find products: %w", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}
