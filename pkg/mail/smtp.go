package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/unionportal/benefits-api/pkg/config"
)

// SMTPMailer sends HTML mail through a plain-auth SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	sender   string
	password string
}

// NewSMTPMailer builds a mailer from the mail configuration.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		sender:   cfg.Sender,
		password: cfg.Password,
	}
}

// Send delivers a single HTML message to the recipients.
func (m *SMTPMailer) Send(to []string, subject, htmlBody string) error {
	if m.sender == "" {
		return fmt.Errorf("smtp sender not configured")
	}

	msg := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n"
	msg += fmt.Sprintf("From: Benefits Portal <%s>\r\n", m.sender)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(to, ","))
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", subject)
	msg += htmlBody

	auth := smtp.PlainAuth("", m.sender, m.password, m.host)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	if err := smtp.SendMail(addr, auth, m.sender, to, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
