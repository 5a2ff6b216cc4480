// Package middleware provides authentication, authorization, error recovery and request logging
// middleware for the Gin web framework.
package middleware

import (
	"context"
	"strings"

	"noisewatch/internal/models"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Keys for session values and gin context values
const (
	// UserIDKey is the key used to store the user ID in the session and the gin context
	UserIDKey = "user_id"
	// UserKey holds the loaded *models.User in the gin context
	UserKey = "user"
)

// UserResolver is the part of the user service the auth middleware needs
type UserResolver interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UserIDFromAccessToken(ctx context.Context, token string) (string, error)
}

// RequireAuth rejects requests without a valid session or bearer token
func RequireAuth(users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c, users)
		if err != nil {
			HandleAppError(c, err)
			c.Abort()
			return
		}
		if user == nil {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrUnauthorized, "Authentication required"))
			c.Abort()
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// RequireAdmin rejects requests unless the caller is an authenticated administrator
func RequireAdmin(users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveUser(c, users)
		if err != nil {
			HandleAppError(c, err)
			c.Abort()
			return
		}
		if user == nil {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrUnauthorized, "Authentication required"))
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrForbidden, "Admin access required"))
			c.Abort()
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth attaches the caller when one can be identified and otherwise lets the request through
func OptionalAuth(users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := resolveUser(c, users); err == nil && user != nil {
			setUser(c, user)
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id set by one of the auth middlewares
func CurrentUserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}

// CurrentUser returns the authenticated user set by one of the auth middlewares
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(UserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// resolveUser identifies the caller from the session first, then from an Authorization bearer token.
// It returns nil without error for anonymous requests.
func resolveUser(c *gin.Context, users UserResolver) (*models.User, error) {
	ctx := c.Request.Context()

	userID := ""
	// Engines without the sessions middleware (the worker) authenticate by token only
	if _, hasSession := c.Get(sessions.DefaultKey); hasSession {
		if id, ok := sessions.Default(c).Get(UserIDKey).(string); ok {
			userID = id
		}
	}

	if userID == "" {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			return nil, nil
		}
		id, err := users.UserIDFromAccessToken(ctx, token)
		if err != nil {
			return nil, contextutils.WrapError(contextutils.ErrUnauthorized, "Invalid or expired token")
		}
		userID = id
	}

	user, err := users.GetUserByID(ctx, userID)
	if err != nil {
		if contextutils.IsError(err, contextutils.ErrRecordNotFound) {
			// The account was deleted after the session or token was issued
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(UserIDKey, user.ID)
	c.Set(UserKey, user)
	c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), user.ID))
}
