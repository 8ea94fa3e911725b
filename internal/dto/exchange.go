package dto

import "github.com/unionportal/benefits-api/internal/models"

// ExchangeItem is one requested line of a redemption order.
type ExchangeItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// PlaceOrderRequest is the payload for redeeming products of the active activity.
type PlaceOrderRequest struct {
	Items []ExchangeItem `json:"items" validate:"required,min=1,dive"`
}

// OrderReceipt summarises a successfully placed redemption order.
type OrderReceipt struct {
	Order           models.Order         `json:"order"`
	Details         []models.OrderDetail `json:"details"`
	RemainingPoints float64              `json:"remaining_points"`
}
