package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/service"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
	"github.com/unionportal/benefits-api/pkg/response"
)

// ExportHandler serves roster export requests, status polling and downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Request godoc
// @Summary Request a roster export
// @Description Queues a background export of the enrollment roster and returns a job ticket
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param request body dto.RequestExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/roster-export [post]
func (h *ExportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RequestExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export request"))
		return
	}

	ticket, err := h.exports.Request(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, ticket, nil)
}

// Status godoc
// @Summary Poll an export job
// @Tags Exports
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /roster-exports/{jobId} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	status, err := h.exports.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download an export by signed token
// @Description Streams the finished export file. Tokens expire and are rejected after TTL.
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.exports.OpenByToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read export"))
		return
	}

	name := filepath.Base(file.Name())
	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
