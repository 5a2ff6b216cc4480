// Package services provides the business logic of the NoiseWatch backend.
package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/services/mailer"
	contextutils "noisewatch/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/mail.v2"
)

// Email template names
const (
	TemplateVerifyEmail = "verify_email"
	TemplateTestEmail   = "test_email"
)

// VerificationSubject is the subject line of the verification email
const VerificationSubject = "Verify your NoiseWatch account"

// EmailService implements mailer.Mailer over SMTP using gomail
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
}

var _ mailer.Mailer = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

// SendVerificationEmail sends the verification link to user
func (e *EmailService) SendVerificationEmail(ctx context.Context, user *models.User, link string) (err error) {
	ctx, span := otel.Tracer("email-service").Start(ctx, "SendVerificationEmail",
		trace.WithAttributes(
			attribute.String("user.id", user.ID),
		),
	)
	defer observability.FinishSpan(span, &err)

	data := map[string]interface{}{
		"Username":   user.Username,
		"VerifyURL":  link,
		"AppBaseURL": e.cfg.Server.AppBaseURL,
	}

	if err = e.SendEmail(ctx, user.Email, VerificationSubject, TemplateVerifyEmail, data); err != nil {
		return contextutils.WrapError(err, "failed to send verification email")
	}
	return nil
}

// SendEmail sends a generic email with the given parameters
func (e *EmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := otel.Tracer("email-service").Start(ctx, "SendEmail",
		trace.WithAttributes(
			attribute.String("email.subject", subject),
			attribute.String("email.template", templateName),
		),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"to":       to,
			"template": templateName,
		})
		return nil
	}

	if e.dialer == nil {
		return contextutils.ErrorWithContextf("email service not properly configured")
	}

	m := mail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.cfg.Email.SMTP.FromName, e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	content, err := renderEmail(templateName, data)
	if err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}
	m.SetBody("text/html", content)

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{
			"to":       to,
			"template": templateName,
			"subject":  subject,
		})
		return contextutils.WrapError(err, "failed to send email")
	}

	e.logger.Info(ctx, "Email sent successfully", map[string]interface{}{
		"to":       to,
		"template": templateName,
	})
	return nil
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != ""
}

const verifyEmailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Verify your email</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #1E88E5; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .button { display: inline-block; background-color: #1E88E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { background-color: #eee; padding: 15px; text-align: center; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>NoiseWatch</h1>
        </div>
        <div class="content">
            <h2>Hello {{.Username}}!</h2>
            <p>Thank you for registering. Please confirm your email address to start reporting noise disturbances in your barangay.</p>
            <div style="text-align: center;">
                <a href="{{.VerifyURL}}" class="button">Verify my email</a>
            </div>
            <p>The link expires in 24 hours and can be used once.</p>
        </div>
        <div class="footer">
            <p>If you did not create a NoiseWatch account you can ignore this message.</p>
        </div>
    </div>
</body>
</html>`

const testEmailTemplate = `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Test Email</title></head>
<body>
    <h2>Hello {{.Username}}!</h2>
    <p>This is a test email to verify that the NoiseWatch mail settings are working.</p>
    <p><strong>Message:</strong> {{.Message}}</p>
</body>
</html>`

var emailTemplates = map[string]*template.Template{
	TemplateVerifyEmail: template.Must(template.New(TemplateVerifyEmail).Parse(verifyEmailTemplate)),
	TemplateTestEmail:   template.Must(template.New(TemplateTestEmail).Parse(testEmailTemplate)),
}

// renderEmail renders a named HTML template
func renderEmail(templateName string, data map[string]interface{}) (string, error) {
	tmpl, ok := emailTemplates[templateName]
	if !ok {
		return "", contextutils.ErrorWithContextf("unknown template: %s", templateName)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", contextutils.WrapError(err, "failed to execute template")
	}
	return buf.String(), nil
}
