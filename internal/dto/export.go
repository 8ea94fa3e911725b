package dto

import "github.com/unionportal/benefits-api/internal/models"

// RequestExportRequest asks for a roster export of one enrollment.
type RequestExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportTicket is returned when an export job is accepted.
type ExportTicket struct {
	JobID  string              `json:"job_id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse reports job progress and, once finished, the signed URL.
type ExportStatusResponse struct {
	JobID        string              `json:"job_id"`
	Status       models.ExportStatus `json:"status"`
	ResultURL    *string             `json:"result_url,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
}
