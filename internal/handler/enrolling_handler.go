package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
	"github.com/unionportal/benefits-api/pkg/response"
)

type enrollingService interface {
	Preview(ctx context.Context, enrollmentID, userID string) (*dto.AdmissionResult, error)
	Submit(ctx context.Context, enrollmentID, userID string, submission dto.EnrollSubmission) (*dto.AdmissionResult, error)
}

// EnrollingHandler exposes the registration form and submission endpoints.
type EnrollingHandler struct {
	enrolling enrollingService
}

// NewEnrollingHandler constructs EnrollingHandler.
func NewEnrollingHandler(enrolling enrollingService) *EnrollingHandler {
	return &EnrollingHandler{enrolling: enrolling}
}

// statusForOutcome maps each admission outcome to its HTTP status.
func statusForOutcome(outcome models.AdmissionOutcome) int {
	switch outcome {
	case models.AdmissionEnrolled:
		return http.StatusCreated
	case models.AdmissionEligible:
		return http.StatusOK
	case models.AdmissionNotReady:
		return http.StatusUnprocessableEntity
	case models.AdmissionCapacityExceeded, models.AdmissionAlreadyEnrolled:
		return http.StatusConflict
	case models.AdmissionSelfEnrollmentOnly:
		return http.StatusForbidden
	case models.AdmissionValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

// Preview godoc
// @Summary Resolve the registration form state
// @Description Runs the admission guards and returns either the pre-filled form or the blocking outcome
// @Tags Enrolling
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/enroll [get]
func (h *EnrollingHandler) Preview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.enrolling.Preview(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, statusForOutcome(result.Outcome), result, nil)
}

// Submit godoc
// @Summary Submit a registration
// @Description Runs the admission pipeline for a posted registration form
// @Tags Enrolling
// @Accept x-www-form-urlencoded
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param EmployeeNo formData string true "Employee number"
// @Param EmailAddress formData string true "Email address"
// @Param Name formData string true "Full name"
// @Param PhoneNumber formData string true "Phone number"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/enroll [post]
func (h *EnrollingHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var submission dto.EnrollSubmission
	if err := c.ShouldBind(&submission); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	submission.FieldInputs = collectFieldInputs(c)

	result, err := h.enrolling.Submit(c.Request.Context(), c.Param("id"), claims.UserID, submission)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, statusForOutcome(result.Outcome), result, nil)
}

// collectFieldInputs extracts dynamic answers from the posted form. Each
// configured question arrives as one "FieldInputs.<key>" entry; the prefix is
// stripped before storage.
func collectFieldInputs(c *gin.Context) models.FieldInputs {
	inputs := models.FieldInputs{}
	if c.Request.PostForm == nil {
		return inputs
	}
	for name, values := range c.Request.PostForm {
		if !strings.HasPrefix(name, dto.FieldInputPrefix) {
			continue
		}
		key := strings.TrimPrefix(name, dto.FieldInputPrefix)
		if key == "" || len(values) == 0 {
			continue
		}
		inputs[key] = values[0]
	}
	return inputs
}
