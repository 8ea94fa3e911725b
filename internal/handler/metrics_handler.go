package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unionportal/benefits-api/internal/service"
	"github.com/unionportal/benefits-api/pkg/response"
)

// MetricsHandler exposes the admin system status snapshot.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs MetricsHandler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// SystemStatus godoc
// @Summary System status snapshot
// @Description Returns aggregate request, cache and database statistics for the admin dashboard
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/system-status [get]
func (h *MetricsHandler) SystemStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
