package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unionportal/benefits-api/internal/service"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
	"github.com/unionportal/benefits-api/pkg/response"
)

// EnrollmentHandler serves the enrollment listing and detail endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List active enrollments
// @Description Returns every currently active enrollment together with its roster
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	items, err := h.enrollments.ListActiveWithRosters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get one enrollment
// @Description Returns the enrollment with its configured form fields
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.enrollments.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Roster godoc
// @Summary List enrollees of an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/roster [get]
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	if c.Param("id") == "" {
		response.Error(c, appErrors.ErrValidation)
		return
	}
	enrollees, err := h.enrollments.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollees, nil)
}
