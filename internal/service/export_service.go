package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/dto"
	"github.com/unionportal/benefits-api/internal/models"
	"github.com/unionportal/benefits-api/internal/repository"
	appErrors "github.com/unionportal/benefits-api/pkg/errors"
	"github.com/unionportal/benefits-api/pkg/export"
	"github.com/unionportal/benefits-api/pkg/jobs"
	"github.com/unionportal/benefits-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
	DeleteByID(ctx context.Context, id string) error
}

type rosterSource interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type rosterReader interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Enrollee, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes roster export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService generates roster export files asynchronously. Requests are
// persisted, pushed onto the in-memory queue, and downloaded later through
// signed tokens.
type ExportService struct {
	repo        exportJobRepository
	enrollments rosterSource
	enrollees   rosterReader
	audit       auditRecorder
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	queue       *jobs.Queue
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService. Call BindQueue before
// accepting requests.
func NewExportService(repo exportJobRepository, enrollments rosterSource, enrollees rosterReader, audit auditRecorder, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		repo:        repo,
		enrollments: enrollments,
		enrollees:   enrollees,
		audit:       audit,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// BindQueue attaches the worker queue used to process accepted requests.
func (s *ExportService) BindQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Request accepts a roster export for the given enrollment and queues it.
func (s *ExportService) Request(ctx context.Context, enrollmentID, userID string, req dto.RequestExportRequest) (*dto.ExportTicket, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	job := &models.ExportJob{
		EnrollmentID: enrollmentID,
		Format:       req.Format,
		Status:       models.ExportStatusQueued,
		CreatedBy:    userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "exports are not enabled")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "roster-export", Payload: job.ID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export job")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionRosterExport,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
		NewValues:  []byte(fmt.Sprintf(`{"format":%q}`, req.Format)),
	}); err != nil {
		s.logger.Warn("failed to record export audit log", zap.Error(err))
	}

	return &dto.ExportTicket{JobID: job.ID, Status: job.Status}, nil
}

// Process is the queue handler: it renders the roster file, stores it and
// records the signed download URL on the job row.
func (s *ExportService) Process(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)
	if jobID == "" {
		jobID = queued.ID
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	processing := models.ExportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		s.logger.Warn("failed to mark export job processing", zap.String("job_id", job.ID), zap.Error(err))
	}

	result, err := s.generate(ctx, job)
	finishedAt := time.Now().UTC()
	if err != nil {
		failed := models.ExportStatusFailed
		message := err.Error()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &message,
			FinishedAt:   &finishedAt,
		}); updateErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}

	finished := models.ExportStatusFinished
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		FilePath:   &result.RelativePath,
		ResultURL:  &result.URL,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("finalize export job %s: %w", job.ID, err)
	}

	s.logger.Info("roster export finished",
		zap.String("job_id", job.ID),
		zap.String("enrollment_id", job.EnrollmentID),
		zap.String("format", string(job.Format)))
	return nil
}

// Status reports progress for a job.
func (s *ExportService) Status(ctx context.Context, jobID string) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return &dto.ExportStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		ResultURL:    job.ResultURL,
		ErrorMessage: job.ErrorMessage,
	}, nil
}

// OpenByToken validates a download token and opens the referenced file.
func (s *ExportService) OpenByToken(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return file, nil
}

// Cleanup removes expired export artifacts and their job rows. Wired to the
// maintenance scheduler.
func (s *ExportService) Cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 0)
	if err != nil {
		s.logger.Warn("export cleanup listing failed", zap.Error(err))
		return
	}
	for _, job := range expired {
		if job.FilePath != nil {
			if err := s.storage.Delete(*job.FilePath); err != nil {
				s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
		}
		if err := s.repo.DeleteByID(ctx, job.ID); err != nil {
			s.logger.Warn("export cleanup row delete failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export directory sweep failed", zap.Error(err))
	} else if len(deleted) > 0 {
		s.logger.Info("export directory swept", zap.Int("deleted", len(deleted)))
	}
}

type exportResult struct {
	RelativePath string
	URL          string
}

func (s *ExportService) generate(ctx context.Context, job *models.ExportJob) (*exportResult, error) {
	enrollment, err := s.enrollments.FindByID(ctx, job.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment %s: %w", job.EnrollmentID, err)
	}
	enrollees, err := s.enrollees.ListByEnrollment(ctx, job.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("load roster %s: %w", job.EnrollmentID, err)
	}

	dataset := buildRosterDataset(enrollees)
	title := fmt.Sprintf("Roster %s", enrollment.Title)

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("rosters/%s_%s.%s", sanitizeFilename(enrollment.Title), time.Now().UTC().Format("20060102_150405"), job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &exportResult{
		RelativePath: relPath,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
	}, nil
}

func buildRosterDataset(enrollees []models.Enrollee) export.Dataset {
	fieldKeys := make([]string, 0)
	seen := make(map[string]bool)
	for _, e := range enrollees {
		for key := range e.FieldInputs {
			if !seen[key] {
				seen[key] = true
				fieldKeys = append(fieldKeys, key)
			}
		}
	}
	sort.Strings(fieldKeys)

	headers := append([]string{"Employee No", "Name", "Email", "Phone", "Enrolled At"}, fieldKeys...)
	rows := make([]map[string]string, 0, len(enrollees))
	for _, e := range enrollees {
		row := map[string]string{
			"Employee No": e.EmployeeNo,
			"Name":        e.Name,
			"Email":       e.EmailAddress,
			"Phone":       e.PhoneNumber,
			"Enrolled At": e.CreatedAt.UTC().Format(time.RFC3339),
		}
		for _, key := range fieldKeys {
			row[key] = e.FieldInputs[key]
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
