package mailer

import (
	"context"
	"testing"

	"noisewatch/internal/models"

	"github.com/stretchr/testify/assert"
)

// MockMailer implements Mailer for testing
type MockMailer struct {
	VerificationLinks []string
	SendEmailCalled   bool
	IsEnabledResult   bool
}

func (m *MockMailer) SendVerificationEmail(_ context.Context, _ *models.User, link string) error {
	m.VerificationLinks = append(m.VerificationLinks, link)
	return nil
}

func (m *MockMailer) SendEmail(_ context.Context, _, _, _ string, _ map[string]interface{}) error {
	m.SendEmailCalled = true
	return nil
}

func (m *MockMailer) IsEnabled() bool {
	return m.IsEnabledResult
}

func TestMailerInterface_Implementation(t *testing.T) {
	var _ Mailer = (*MockMailer)(nil)

	mock := &MockMailer{}
	ctx := context.Background()
	user := &models.User{ID: "u1", Username: "juan"}

	assert.NoError(t, mock.SendVerificationEmail(ctx, user, "http://localhost/auth/verify?token=t"))
	assert.Equal(t, []string{"http://localhost/auth/verify?token=t"}, mock.VerificationLinks)

	assert.NoError(t, mock.SendEmail(ctx, "juan@example.com", "Subject", "test_email", nil))
	assert.True(t, mock.SendEmailCalled)

	assert.False(t, mock.IsEnabled())
	mock.IsEnabledResult = true
	assert.True(t, mock.IsEnabled())
}
