// Package models defines data structures shared by the NoiseWatch stores, services and handlers.
package models

import (
	"time"

	"noisewatch/internal/escalation"
)

// MediaKind is the type of evidence attached to a report
type MediaKind string

const (
	// MediaAudio is an audio recording
	MediaAudio MediaKind = "audio"
	// MediaVideo is a video recording
	MediaVideo MediaKind = "video"
)

// GeoPointType is the GeoJSON type stored in GeoPoint.Type
const GeoPointType = "Point"

// Location is the citizen-supplied position of the disturbance
type Location struct {
	Latitude  float64 `json:"lat" bson:"lat"`
	Longitude float64 `json:"lng" bson:"lng"`
	Address   string  `json:"address,omitempty" bson:"address,omitempty"`
}

// GeoPoint is a GeoJSON point. Coordinates are ordered (longitude, latitude).
type GeoPoint struct {
	Type        string     `json:"type" bson:"type"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a longitude/latitude pair
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: GeoPointType, Coordinates: [2]float64{lng, lat}}
}

// Lng returns the longitude
func (g GeoPoint) Lng() float64 { return g.Coordinates[0] }

// Lat returns the latitude
func (g GeoPoint) Lat() float64 { return g.Coordinates[1] }

// AdminAction is one entry of a report's append-only audit trail
type AdminAction struct {
	Action    string            `json:"action" bson:"action"`
	Status    escalation.Status `json:"status" bson:"status"`
	Note      string            `json:"note" bson:"note"`
	AdminID   *string           `json:"adminId,omitempty" bson:"adminId,omitempty"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
}

// NoiseReport is a citizen's noise complaint
type NoiseReport struct {
	ID              string                `json:"id" bson:"_id"`
	MediaReference  string                `json:"mediaReference" bson:"mediaReference"`
	MediaKind       MediaKind             `json:"mediaKind" bson:"mediaKind"`
	Reason          string                `json:"reason" bson:"reason"`
	Comment         string                `json:"comment,omitempty" bson:"comment,omitempty"`
	Location        *Location             `json:"location,omitempty" bson:"location,omitempty"`
	Geo             GeoPoint              `json:"geo" bson:"geo"`
	NoiseLevel      escalation.NoiseLevel `json:"noiseLevel" bson:"noiseLevel"`
	ConsecutiveDays int                   `json:"consecutiveDays" bson:"consecutiveDays"`
	Status          escalation.Status     `json:"status" bson:"status"`
	AdminActions    []AdminAction         `json:"adminActions" bson:"adminActions"`
	UserID          *string               `json:"userId" bson:"userId"`
	Version         int                   `json:"version" bson:"version"`
	CreatedAt       time.Time             `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt" bson:"updatedAt"`
}

// Options returns the responses the escalation policy currently offers for this report
func (r *NoiseReport) Options() []escalation.Option {
	return escalation.Options(r.NoiseLevel, r.ConsecutiveDays)
}

// ResponseText returns the citizen-facing text for the report's current status
func (r *NoiseReport) ResponseText() string {
	return escalation.ResponseText(r.NoiseLevel, r.ConsecutiveDays, r.Status)
}

// IsOwnedBy reports whether userID submitted the report
func (r *NoiseReport) IsOwnedBy(userID string) bool {
	return r.UserID != nil && userID != "" && *r.UserID == userID
}

// ReportFilter narrows report listings. Nil fields do not filter.
type ReportFilter struct {
	Status     *escalation.Status
	NoiseLevel *escalation.NoiseLevel
	UserID     *string
	Since      *time.Time
	Limit      int
}

// StatusChange is the mutation applied by an administrator's status transition.
// ExpectedVersion 0 accepts whatever version is current.
type StatusChange struct {
	ReportID        string
	ExpectedVersion int
	Status          escalation.Status
	At              time.Time
}

// ReportOptions is the policy view of a single report
type ReportOptions struct {
	ReportID        string                `json:"reportId"`
	NoiseLevel      escalation.NoiseLevel `json:"noiseLevel"`
	ConsecutiveDays int                   `json:"consecutiveDays"`
	Status          escalation.Status     `json:"status"`
	ResponseText    string                `json:"responseText"`
	Threshold       int                   `json:"threshold"`
	Options         []escalation.Option   `json:"options"`
}
