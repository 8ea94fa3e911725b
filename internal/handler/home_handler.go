package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unionportal/benefits-api/internal/models"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
	"github.com/unionportal/benefits-api/pkg/response"
)

type identityService interface {
	GetWithEmployee(ctx context.Context, userID string) (*models.UserWithEmployee, error)
}

// HomeHandler routes authenticated users to their role landing area.
type HomeHandler struct {
	users identityService
}

// NewHomeHandler constructs HomeHandler.
func NewHomeHandler(users identityService) *HomeHandler {
	return &HomeHandler{users: users}
}

// homeDestination is the landing payload resolved per role.
type homeDestination struct {
	Destination string           `json:"destination"`
	User        models.UserInfo  `json:"user"`
	Employee    *models.Employee `json:"employee,omitempty"`
}

// destinationFor maps a role to its landing area. An empty role means no
// session; unknown roles land on the portal rather than an error page.
func destinationFor(role models.UserRole) string {
	switch role {
	case models.RoleAdmin:
		return "/admin/dashboard"
	case models.RoleEmployee:
		return "/portal"
	case "":
		return "/login"
	default:
		return "/portal"
	}
}

// Home godoc
// @Summary Resolve landing destination
// @Description Returns the role-dependent landing area and the caller's profile
// @Tags Home
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /home [get]
func (h *HomeHandler) Home(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	dest := homeDestination{
		Destination: destinationFor(claims.Role),
		User:        models.UserInfo{ID: claims.UserID, Username: claims.Username, Role: claims.Role},
	}

	user, err := h.users.GetWithEmployee(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if profile, ok := user.Profile(); ok {
		dest.Employee = &profile
	}

	response.JSON(c, http.StatusOK, dest, nil)
}
