package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/services/mailer"
	"noisewatch/internal/store"
	contextutils "noisewatch/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Password length bounds. bcrypt rejects inputs longer than 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// Fixed messages returned for failed logins
const (
	InvalidCredentialsMessage = "Invalid email or password"
	EmailNotVerifiedMessage   = "Please verify your email before logging in"
)

// UserServiceInterface defines the interface for user-related operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, since *time.Time, limit int) ([]models.User, error)
	DeleteUser(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, newPassword string) error
	MarkVerified(ctx context.Context, id string) error
	UpdateProfilePhoto(ctx context.Context, id, photoURL string) (*models.User, error)
	IsAdmin(ctx context.Context, id string) (bool, error)
	EnsureAdminUserExists(ctx context.Context, username, email, password string) error
	IssueAccessToken(ctx context.Context, user *models.User) (string, error)
	UserIDFromAccessToken(ctx context.Context, token string) (string, error)
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UserService provides methods for user management.
type UserService struct {
	users  store.UserRepository
	tokens *TokenService
	mailer mailer.Mailer
	cfg    *config.Config
	logger *observability.Logger
	now    func() time.Time
}

var _ UserServiceInterface = (*UserService)(nil)

// NewUserService creates a new UserService
func NewUserService(users store.UserRepository, tokens *TokenService, m mailer.Mailer, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		mailer: m,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Register creates an unverified account and sends the verification email
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (result *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "register")
	defer observability.FinishSpan(span, &err)

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := contextutils.ValidateStruct(req); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		UserType:     models.UserTypeUser,
		ProfilePhoto: config.DefaultProfilePhoto,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeUserID(user.ID))
	observability.UsersRegistered.Inc()

	// The account exists either way; a failed send can be retried through resend-verification
	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Error(ctx, "Failed to send verification email", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}

	s.logger.Info(ctx, "User registered", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})
	return user, nil
}

func (s *UserService) sendVerification(ctx context.Context, user *models.User) error {
	token, err := s.tokens.IssueVerificationToken(user.ID)
	if err != nil {
		return err
	}
	link := strings.TrimRight(s.cfg.Server.AppBaseURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
	return s.mailer.SendVerificationEmail(ctx, user, link)
}

// Authenticate checks credentials. Unknown email and wrong password give the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (result *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate")
	defer observability.FinishSpan(span, &err)

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrRecordNotFound) {
			return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, InvalidCredentialsMessage)
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, InvalidCredentialsMessage)
	}

	if !user.IsVerified {
		return nil, contextutils.WrapError(contextutils.ErrEmailNotVerified, EmailNotVerifiedMessage)
	}
	return user, nil
}

// VerifyEmail redeems a verification token. A token can flip the flag only once.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (result *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "verify_email")
	defer observability.FinishSpan(span, &err)

	userID, err := s.tokens.Verify(token, PurposeVerifyEmail)
	if err != nil {
		return nil, err
	}

	changed, err := s.users.MarkVerified(ctx, userID, s.now().UTC())
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrRecordNotFound) {
			return nil, contextutils.WrapError(contextutils.ErrInvalidToken, "verification link refers to an unknown account")
		}
		return nil, err
	}
	if !changed {
		return nil, contextutils.WrapError(contextutils.ErrInvalidToken, "verification link has already been used")
	}

	return s.users.GetByID(ctx, userID)
}

// ResendVerification mails a fresh link. Unknown and already verified emails are ignored.
func (s *UserService) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "resend_verification")
	defer observability.FinishSpan(span, &err)

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.IsVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

// GetUserByID returns a user
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListUsers returns accounts newest first
func (s *UserService) ListUsers(ctx context.Context, since *time.Time, limit int) ([]models.User, error) {
	return s.users.List(ctx, since, limit)
}

// DeleteUser removes an account. Its reports stay, detached from the user.
func (s *UserService) DeleteUser(ctx context.Context, id string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "delete_user", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "User deleted", map[string]interface{}{"user_id": id})
	return nil
}

// ResetPassword replaces a user's password
func (s *UserService) ResetPassword(ctx context.Context, id, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "reset_password", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash, s.now().UTC())
}

// MarkVerified verifies an account without a token (admin tooling)
func (s *UserService) MarkVerified(ctx context.Context, id string) error {
	_, err := s.users.MarkVerified(ctx, id, s.now().UTC())
	return err
}

// UpdateProfilePhoto stores a new profile photo URL
func (s *UserService) UpdateProfilePhoto(ctx context.Context, id, photoURL string) (result *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_profile_photo", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	if err := s.users.UpdateProfilePhoto(ctx, id, photoURL, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// IsAdmin checks whether the user has the admin role
func (s *UserService) IsAdmin(ctx context.Context, id string) (bool, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}

// EnsureAdminUserExists creates or promotes the bootstrap administrator
func (s *UserService) EnsureAdminUserExists(ctx context.Context, username, email, password string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user_exists")
	defer observability.FinishSpan(span, &err)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		s.logger.Warn(ctx, "No admin email configured, skipping admin bootstrap", nil)
		return nil
	}

	now := s.now().UTC()
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			if err := s.users.SetUserType(ctx, existing.ID, models.UserTypeAdmin, now); err != nil {
				return err
			}
		}
		if !existing.IsVerified {
			if _, err := s.users.MarkVerified(ctx, existing.ID, now); err != nil {
				return err
			}
		}
		return nil
	case !contextutils.IsError(err, contextutils.ErrRecordNotFound):
		return err
	}

	if password == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "admin password is required to create the admin user")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		UserType:     models.UserTypeAdmin,
		ProfilePhoto: config.DefaultProfilePhoto,
		IsVerified:   true,
		VerifiedAt:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info(ctx, "Admin user created", map[string]interface{}{
		"user_id": admin.ID,
		"email":   email,
	})
	return nil
}

// IssueAccessToken returns a bearer token for user
func (s *UserService) IssueAccessToken(_ context.Context, user *models.User) (string, error) {
	return s.tokens.IssueAccessToken(user.ID)
}

// UserIDFromAccessToken validates a bearer token and returns its user id
func (s *UserService) UserIDFromAccessToken(_ context.Context, token string) (string, error) {
	return s.tokens.Verify(token, PurposeAccess)
}

func hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", contextutils.WrapErrorf(contextutils.ErrValidationFailed, "password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return "", contextutils.WrapErrorf(contextutils.ErrValidationFailed, "password must be at most %d bytes", MaxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to hash password")
	}
	return string(hash), nil
}
