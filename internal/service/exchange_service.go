package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	"github.com/unionportal/benefits-api/internal/repository"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

type activityCatalog interface {
	GetActive(ctx context.Context) (*models.ActivityDetail, error)
	ProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
}

type orderWriter interface {
	CreateWithDetails(ctx context.Context, order *models.Order, details []models.OrderDetail) (float64, error)
}

// ExchangeService places point-redemption orders against the active activity.
type ExchangeService struct {
	activities activityCatalog
	orders     orderWriter
	identity   identityResolver
	audit      auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewExchangeService constructs an ExchangeService.
func NewExchangeService(activities activityCatalog, orders orderWriter, identity identityResolver, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ExchangeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExchangeService{activities: activities, orders: orders, identity: identity, audit: audit, validator: validate, logger: logger}
}

// PlaceOrder redeems products for the acting user. Every requested product
// must belong to the currently active activity; the point debit is atomic
// with the order insert so a stale balance read cannot overspend.
func (s *ExchangeService) PlaceOrder(ctx context.Context, userID string, req dto.PlaceOrderRequest) (*dto.OrderReceipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order payload")
	}

	user, err := s.identity.GetWithEmployee(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, ok := user.Profile()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNoEmployeeProfile, "")
	}

	activity, err := s.activities.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no activity is currently open for exchange")
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}
	products, err := s.activities.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ActivityID:    activity.ID,
		EmployeeNo:    profile.No,
		CreatedBy:     user.ID,
		CreatedByName: user.Username,
	}
	details := make([]models.OrderDetail, 0, len(req.Items))
	for _, item := range req.Items {
		product, found := products[item.ProductID]
		if !found || product.ActivityID != activity.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("product %s is not part of the active activity", item.ProductID))
		}
		order.TotalBonusPoints += product.BonusPointPrice * float64(item.Quantity)
		order.TotalMoney += product.MoneyPrice * float64(item.Quantity)
		details = append(details, models.OrderDetail{
			ProductID:       product.ID,
			Quantity:        item.Quantity,
			BonusPointPrice: product.BonusPointPrice,
			MoneyPrice:      product.MoneyPrice,
		})
	}

	remaining, err := s.orders.CreateWithDetails(ctx, order, details)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientPoints, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to place order")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionOrderPlace,
		Resource:   "order",
		ResourceID: &order.ID,
		NewValues:  []byte(fmt.Sprintf(`{"total_bonus_points":%.2f}`, order.TotalBonusPoints)),
	}); err != nil {
		s.logger.Warn("failed to record order audit log", zap.Error(err))
	}

	return &dto.OrderReceipt{Order: *order, Details: details, RemainingPoints: remaining}, nil
}
