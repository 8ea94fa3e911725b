package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/unionportal/benefits-api/internal/models"
)

// Mailer delivers HTML mail. Implemented by pkg/mail.SMTPMailer.
type Mailer interface {
	Send(to []string, subject, htmlBody string) error
}

// NotificationService composes and sends enrollment confirmation mail.
type NotificationService struct {
	mailer  Mailer
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService constructs a NotificationService. When disabled the
// service drops every message silently.
func NewNotificationService(mailer Mailer, logger *zap.Logger, enabled bool) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: mailer, logger: logger, enabled: enabled}
}

// SendEnrollmentConfirmation mails the enrollee a registration receipt.
func (s *NotificationService) SendEnrollmentConfirmation(enrollment *models.Enrollment, enrollee *models.Enrollee) error {
	if !s.enabled || s.mailer == nil {
		return nil
	}
	if enrollee.EmailAddress == "" {
		return nil
	}

	subject := fmt.Sprintf("Enrollment confirmed: %s", enrollment.Title)
	body := fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Your registration for <strong>%s</strong> has been received.</p>
<p>Employee number: %s</p>
<p>The event runs from %s to %s.</p>
<p>Benefits Portal</p>
</body></html>`,
		enrollee.Name,
		enrollment.Title,
		enrollee.EmployeeNo,
		enrollment.OpenFrom.Format("2006-01-02"),
		enrollment.OpenUntil.Format("2006-01-02"))

	if err := s.mailer.Send([]string{enrollee.EmailAddress}, subject, body); err != nil {
		return err
	}
	s.logger.Info("enrollment confirmation sent",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("employee_no", enrollee.EmployeeNo))
	return nil
}
