package handlers

import (
	"net/http"
	"strings"

	"noisewatch/internal/middleware"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.opentelemetry.io/otel/attribute"
)

// AuthHandler handles registration, email verification and login
type AuthHandler struct {
	userService services.UserServiceInterface
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService services.UserServiceInterface, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

type registerRequest struct {
	Username string              `json:"username"`
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

type loginRequest struct {
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

type resendVerificationRequest struct {
	Email openapi_types.Email `json:"email"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register creates an unverified account and mails the verification link
func (h *AuthHandler) Register(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "register")
	defer observability.FinishSpan(span, nil)

	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Register(ctx, services.RegisterRequest{
		Username: req.Username,
		Email:    string(req.Email),
		Password: req.Password,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeUserID(user.ID))
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    user,
	})
}

// VerifyEmail redeems the one-time token from the verification mail
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "verify_email")
	defer observability.FinishSpan(span, nil)

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, "token is required"))
		return
	}

	user, err := h.userService.VerifyEmail(ctx, token)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Email verified. You can now log in.",
		"user":    user,
	})
}

// ResendVerification mails a new link. The response does not reveal whether the email exists.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "resend_verification")
	defer observability.FinishSpan(span, nil)

	var req resendVerificationRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Email == "" {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, "email is required"))
		return
	}

	if err := h.userService.ResendVerification(ctx, string(req.Email)); err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the account exists and is not verified, a new verification email has been sent."})
}

// Login checks credentials, starts a session and returns a bearer token
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	span.SetAttributes(attribute.Bool("auth.password_provided", req.Password != ""))

	user, err := h.userService.Authenticate(ctx, string(req.Email), req.Password)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	token, err := h.userService.IssueAccessToken(ctx, user)
	if err != nil {
		h.logger.Error(ctx, "Failed to issue access token", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, err)
		return
	}

	if err := startSession(c, user.ID); err != nil {
		h.logger.Error(ctx, "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	span.SetAttributes(observability.AttributeUserID(user.ID))
	c.JSON(http.StatusOK, LoginResponse{User: user, Token: token})
}

// Logout clears the session
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	if err := endSession(c); err != nil {
		h.logger.Warn(ctx, "Failed to clear session", map[string]interface{}{"error": err.Error()})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Status reports whether the caller is authenticated. Route it behind middleware.OptionalAuth.
func (h *AuthHandler) Status(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}
