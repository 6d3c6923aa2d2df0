package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/bankfolio/backend/src/config"
	"github.com/username/bankfolio/backend/src/logger"
)

// EmailService sends the triage digest: a short notice that an import left
// operations waiting for human review.
type EmailService interface {
	SendTriageDigest(toEmail string, pendingCount int, batchID string) error
}

func NewEmailService() EmailService {
	if config.Cfg == nil {
		logger.L.Error("Configuration not loaded. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &MailgunEmailService{
			mg:          mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey),
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			server:      config.Cfg.SMTPServer,
			port:        config.Cfg.SMTPPort,
			user:        config.Cfg.SMTPUser,
			password:    config.Cfg.SMTPPassword,
			senderEmail: config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

func triageDigestBody(pendingCount int, batchID string) (subject, body string) {
	subject = fmt.Sprintf("Bankfolio: %d operation(s) need review", pendingCount)
	body = fmt.Sprintf(
		"An import (batch %s) finished with %d operation(s) in pending triage.\n"+
			"These rows failed strict normalization or look like duplicate candidates.\n"+
			"Please review them before trusting account aggregates.\n",
		batchID, pendingCount)
	return subject, body
}

type MailgunEmailService struct {
	mg          *mailgun.MailgunImpl
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) SendTriageDigest(toEmail string, pendingCount int, batchID string) error {
	subject, body := triageDigestBody(pendingCount, batchID)
	sender := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)

	message := mailgun.NewMessage(sender, subject, body, toEmail)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	logger.L.Info("Triage digest sent via Mailgun", "to", toEmail, "messageID", id)
	return nil
}

type SMTPEmailService struct {
	server      string
	port        int
	user        string
	password    string
	senderEmail string
}

func (s *SMTPEmailService) SendTriageDigest(toEmail string, pendingCount int, batchID string) error {
	subject, body := triageDigestBody(pendingCount, batchID)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.senderEmail, toEmail, subject, body))

	addr := fmt.Sprintf("%s:%d", s.server, s.port)
	auth := smtp.PlainAuth("", s.user, s.password, s.server)
	if err := smtp.SendMail(addr, auth, s.senderEmail, []string{toEmail}, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	logger.L.Info("Triage digest sent via SMTP", "to", toEmail)
	return nil
}

// MockEmailService logs instead of sending. Used in development and tests.
type MockEmailService struct {
	Sent []string // recipients, for test assertions
}

func (s *MockEmailService) SendTriageDigest(toEmail string, pendingCount int, batchID string) error {
	s.Sent = append(s.Sent, toEmail)
	if logger.L != nil {
		logger.L.Info("MOCK: triage digest", "to", toEmail, "pending", pendingCount, "batchID", batchID)
	}
	return nil
}
