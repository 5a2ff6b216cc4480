package services

import (
	"context"
	"sync"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/services/mailer"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SentEmail is a message captured by TestEmailService
type SentEmail struct {
	To       string
	Subject  string
	Template string
	Data     map[string]interface{}
}

// TestEmailService implements the Mailer interface for testing purposes.
// It doesn't send anything; messages are logged and kept in memory.
type TestEmailService struct {
	cfg    *config.Config
	logger *observability.Logger

	mu   sync.Mutex
	sent []SentEmail
}

var _ mailer.Mailer = (*TestEmailService)(nil)

// NewTestEmailService creates a new TestEmailService instance
func NewTestEmailService(cfg *config.Config, logger *observability.Logger) *TestEmailService {
	return &TestEmailService{
		cfg:    cfg,
		logger: logger,
	}
}

// SendVerificationEmail records the verification email (test mode)
func (e *TestEmailService) SendVerificationEmail(ctx context.Context, user *models.User, link string) error {
	ctx, span := otel.Tracer("test-email-service").Start(ctx, "SendVerificationEmail",
		trace.WithAttributes(attribute.String("user.id", user.ID)),
	)
	defer span.End()

	return e.SendEmail(ctx, user.Email, VerificationSubject, TemplateVerifyEmail, map[string]interface{}{
		"Username":  user.Username,
		"VerifyURL": link,
	})
}

// SendEmail logs the email instead of sending it
func (e *TestEmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error {
	e.mu.Lock()
	e.sent = append(e.sent, SentEmail{To: to, Subject: subject, Template: templateName, Data: data})
	e.mu.Unlock()

	e.logger.Info(ctx, "TEST MODE: Would send email", map[string]interface{}{
		"to":        to,
		"subject":   subject,
		"template":  templateName,
		"test_mode": true,
	})
	return nil
}

// IsEnabled always returns true for the test service
func (e *TestEmailService) IsEnabled() bool {
	return true
}

// Sent returns a copy of the captured messages
func (e *TestEmailService) Sent() []SentEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SentEmail, len(e.sent))
	copy(out, e.sent)
	return out
}
