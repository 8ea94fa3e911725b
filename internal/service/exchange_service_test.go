package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	"github.com/unionportal/benefits-api/internal/repository"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
)

type fakeCatalog struct {
	active   *models.ActivityDetail
	products map[string]models.Product
}

func (f *fakeCatalog) GetActive(ctx context.Context) (*models.ActivityDetail, error) {
	return f.active, nil
}

func (f *fakeCatalog) ProductsByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	result := make(map[string]models.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

type fakeOrderWriter struct {
	remaining float64
	err       error
	created   *models.Order
	details   []models.OrderDetail
}

func (f *fakeOrderWriter) CreateWithDetails(ctx context.Context, order *models.Order, details []models.OrderDetail) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	order.ID = "order-1"
	f.created = order
	f.details = details
	return f.remaining, nil
}

func liveActivity() *models.ActivityDetail {
	now := time.Now().UTC()
	return &models.ActivityDetail{
		Activity: models.Activity{ID: "act-1", Name: "Spring Rewards", BeginTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour), Active: true},
	}
}

func newExchangeService(catalog *fakeCatalog, orders *fakeOrderWriter, identity *fakeIdentity) (*ExchangeService, *fakeAudit) {
	audit := &fakeAudit{}
	svc := NewExchangeService(catalog, orders, identity, audit, validator.New(), zap.NewNop())
	return svc, audit
}

func TestPlaceOrderSuccess(t *testing.T) {
	catalog := &fakeCatalog{
		active: liveActivity(),
		products: map[string]models.Product{
			"prod-1": {ID: "prod-1", ActivityID: "act-1", Name: "Mug", BonusPointPrice: 50, MoneyPrice: 5},
			"prod-2": {ID: "prod-2", ActivityID: "act-1", Name: "Shirt", BonusPointPrice: 100, MoneyPrice: 10},
		},
	}
	orders := &fakeOrderWriter{remaining: 250}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, audit := newExchangeService(catalog, orders, identity)

	receipt, err := svc.PlaceOrder(context.Background(), "u1", dto.PlaceOrderRequest{Items: []dto.ExchangeItem{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, 200.0, receipt.Order.TotalBonusPoints)
	assert.Equal(t, 20.0, receipt.Order.TotalMoney)
	assert.Equal(t, "E100", receipt.Order.EmployeeNo)
	assert.Equal(t, 250.0, receipt.RemainingPoints)
	require.Len(t, receipt.Details, 2)
	assert.Equal(t, 50.0, receipt.Details[0].BonusPointPrice)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionOrderPlace, audit.logs[0].Action)
}

func TestPlaceOrderNoActiveActivity(t *testing.T) {
	catalog := &fakeCatalog{}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _ := newExchangeService(catalog, &fakeOrderWriter{}, identity)

	_, err := svc.PlaceOrder(context.Background(), "u1", dto.PlaceOrderRequest{Items: []dto.ExchangeItem{{ProductID: "prod-1", Quantity: 1}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestPlaceOrderRequiresEmployeeProfile(t *testing.T) {
	catalog := &fakeCatalog{active: liveActivity()}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{
		"u1": {User: models.User{ID: "u1", Username: "contractor", Role: models.RoleEmployee, Active: true}},
	}}
	svc, _ := newExchangeService(catalog, &fakeOrderWriter{}, identity)

	_, err := svc.PlaceOrder(context.Background(), "u1", dto.PlaceOrderRequest{Items: []dto.ExchangeItem{{ProductID: "prod-1", Quantity: 1}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoEmployeeProfile.Code, appErrors.FromError(err).Code)
}

func TestPlaceOrderRejectsForeignProduct(t *testing.T) {
	catalog := &fakeCatalog{
		active:   liveActivity(),
		products: map[string]models.Product{"prod-9": {ID: "prod-9", ActivityID: "act-2", BonusPointPrice: 10}},
	}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _ := newExchangeService(catalog, &fakeOrderWriter{}, identity)

	_, err := svc.PlaceOrder(context.Background(), "u1", dto.PlaceOrderRequest{Items: []dto.ExchangeItem{{ProductID: "prod-9", Quantity: 1}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPlaceOrderInsufficientPoints(t *testing.T) {
	catalog := &fakeCatalog{
		active:   liveActivity(),
		products: map[string]models.Product{"prod-1": {ID: "prod-1", ActivityID: "act-1", BonusPointPrice: 500}},
	}
	orders := &fakeOrderWriter{err: repository.ErrInsufficientPoints}
	identity := &fakeIdentity{users: map[string]*models.UserWithEmployee{"u1": linkedUser("u1", "alice", "E100")}}
	svc, _ := newExchangeService(catalog, orders, identity)

	_, err := svc.PlaceOrder(context.Background(), "u1", dto.PlaceOrderRequest{Items: []dto.ExchangeItem{{ProductID: "prod-1", Quantity: 1}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientPoints.Code, appErrors.FromError(err).Code)
}

func TestPlaceOrderValidatesPayload(t *testing.T) {
	svc, _ := newExchangeService(&fakeCatalog{}, &fakeOrderWriter{}, &fakeIdentity{})

	_, err := svc.PlaceOrder(context.Background(), "u1", dto.PlaceOrderRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.PlaceOrder(context.Background(), "u1", dto.PlaceOrderRequest{Items: []dto.ExchangeItem{{ProductID: "prod-1", Quantity: 0}}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
