package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/service"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
	"github.com/unionportal/benefits-api/pkg/response"
)

// ExchangeHandler serves the point-redemption endpoints.
type ExchangeHandler struct {
	activities *service.ActivityService
	exchange   *service.ExchangeService
}

// NewExchangeHandler constructs ExchangeHandler.
func NewExchangeHandler(activities *service.ActivityService, exchange *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{activities: activities, exchange: exchange}
}

// Activity godoc
// @Summary Get the currently open exchange activity
// @Description Returns the active activity with its product catalog, or an empty body when none is open
// @Tags Exchange
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exchange/activity [get]
func (h *ExchangeHandler) Activity(c *gin.Context) {
	detail, err := h.activities.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// PlaceOrder godoc
// @Summary Place a redemption order
// @Description Debits the caller's point balance and records the order with its line items
// @Tags Exchange
// @Accept json
// @Produce json
// @Param request body dto.PlaceOrderRequest true "Order items"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exchange/orders [post]
func (h *ExchangeHandler) PlaceOrder(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid order payload"))
		return
	}

	receipt, err := h.exchange.PlaceOrder(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}
