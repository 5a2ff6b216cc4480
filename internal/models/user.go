package models

import "time"

// UserType distinguishes citizens from barangay administrators
type UserType string

const (
	// UserTypeAdmin can triage and resolve reports
	UserTypeAdmin UserType = "admin"
	// UserTypeUser is a reporting citizen
	UserTypeUser UserType = "user"
)

// User represents an account in the system
type User struct {
	ID           string     `json:"id" bson:"_id"`
	Username     string     `json:"username" bson:"username"`
	Email        string     `json:"email" bson:"email"`
	PasswordHash string     `json:"-" bson:"password"`
	UserType     UserType   `json:"userType" bson:"userType"`
	ProfilePhoto string     `json:"profilePhoto" bson:"profilePhoto"`
	IsVerified   bool       `json:"isVerified" bson:"isVerified"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// IsAdmin reports whether the user is an administrator
func (u *User) IsAdmin() bool {
	return u != nil && u.UserType == UserTypeAdmin
}
