package handlers

import (
	"time"

	"noisewatch/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// NotificationsSeenAtKey stores when the admin last marked notifications as read (RFC 3339)
const NotificationsSeenAtKey = "notifications_seen_at"

// GetUserIDFromSession retrieves the current user ID from the session.
// Returns ("", false) if not authenticated or if the stored value is invalid.
func GetUserIDFromSession(c *gin.Context) (string, bool) {
	id, ok := sessions.Default(c).Get(middleware.UserIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// startSession logs the user in for subsequent cookie-authenticated requests
func startSession(c *gin.Context, userID string) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.UserIDKey, userID)
	return session.Save()
}

// endSession forgets everything stored for this browser
func endSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

// notificationsSeenAt returns the read mark of the current session, if any
func notificationsSeenAt(c *gin.Context) *time.Time {
	raw, ok := sessions.Default(c).Get(NotificationsSeenAtKey).(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &t
}

// markNotificationsSeen stores at as the read mark of the current session
func markNotificationsSeen(c *gin.Context, at time.Time) error {
	session := sessions.Default(c)
	session.Set(NotificationsSeenAtKey, at.UTC().Format(time.RFC3339Nano))
	return session.Save()
}
