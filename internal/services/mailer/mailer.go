// Package mailer defines the outbound mail interface used by the account services.
package mailer

import (
	"context"

	"noisewatch/internal/models"
)

// Mailer defines the interface for email sending functionality
type Mailer interface {
	// SendVerificationEmail sends the one-time verification link to a newly registered user
	SendVerificationEmail(ctx context.Context, user *models.User, link string) error

	// SendEmail sends a generic email with the given parameters
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error

	// IsEnabled returns whether email functionality is enabled
	IsEnabled() bool
}
