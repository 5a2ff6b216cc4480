package models

import (
	"time"

	"noisewatch/internal/escalation"
)

// NotificationKind identifies what produced a notification
type NotificationKind string

const (
	// NotificationReport is produced by a newly submitted report
	NotificationReport NotificationKind = "report"
	// NotificationRegistration is produced by a new account
	NotificationRegistration NotificationKind = "registration"
)

// Notification is one item of the admin feed. It is derived, never stored.
type Notification struct {
	ID          string                 `json:"id"`
	Kind        NotificationKind       `json:"kind"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	ReferenceID string                 `json:"referenceId"`
	NoiseLevel  *escalation.NoiseLevel `json:"noiseLevel,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	Unread      bool                   `json:"unread"`
}

// NotificationFeed is the projection returned to administrators
type NotificationFeed struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unreadCount"`
	SeenAt      *time.Time     `json:"seenAt,omitempty"`
	Since       time.Time      `json:"since"`
}
