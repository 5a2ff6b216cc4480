package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"noisewatch/internal/escalation"
	"noisewatch/internal/models"
	contextutils "noisewatch/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

// Field limits for a submitted report
const (
	MaxReasonLength  = 200
	MaxCommentLength = 2000
	MaxAddressLength = 500
)

// locationSchema accepts {lat, lng} or the {latitude, longitude} spelling
const locationSchema = `{
	"type": "object",
	"properties": {
		"lat":       {"type": "number", "minimum": -90,  "maximum": 90},
		"lng":       {"type": "number", "minimum": -180, "maximum": 180},
		"latitude":  {"type": "number", "minimum": -90,  "maximum": 90},
		"longitude": {"type": "number", "minimum": -180, "maximum": 180},
		"address":   {"type": "string", "maxLength": 500}
	},
	"anyOf": [
		{"required": ["lat", "lng"]},
		{"required": ["latitude", "longitude"]}
	]
}`

var compiledLocationSchema = mustCompileSchema(locationSchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return schema
}

// SubmissionForm is the raw multipart form of a new report
type SubmissionForm struct {
	HasMedia   bool
	Reason     string
	Comment    string
	Location   string // JSON encoded, optional
	MediaType  string // "audio" or "video"; empty means use the detected kind
	NoiseLevel string
}

type locationInput struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

// ValidateSubmission checks a submission form and returns the pending report it describes.
// The caller assigns id, media reference, owner and timestamps.
func ValidateSubmission(form SubmissionForm) (*models.NoiseReport, error) {
	if !form.HasMedia {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "media file is required")
	}

	reason := strings.TrimSpace(form.Reason)
	if reason == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "reason must be at most %d characters", MaxReasonLength)
	}

	comment := strings.TrimSpace(form.Comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "comment must be at most %d characters", MaxCommentLength)
	}

	if strings.TrimSpace(form.NoiseLevel) == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "noiseLevel is required")
	}
	level, ok := escalation.ParseNoiseLevel(form.NoiseLevel)
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "noiseLevel must be one of red, yellow, green (got %q)", form.NoiseLevel)
	}

	var kind models.MediaKind
	switch mt := strings.ToLower(strings.TrimSpace(form.MediaType)); mt {
	case "":
	case string(models.MediaAudio), string(models.MediaVideo):
		kind = models.MediaKind(mt)
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "mediaType must be audio or video (got %q)", form.MediaType)
	}

	location, err := parseLocation(form.Location)
	if err != nil {
		return nil, err
	}

	report := &models.NoiseReport{
		MediaKind:       kind,
		Reason:          reason,
		Comment:         comment,
		Location:        location,
		Geo:             models.NewGeoPoint(0, 0),
		NoiseLevel:      level,
		ConsecutiveDays: 1,
		Status:          escalation.StatusPending,
		AdminActions:    []models.AdminAction{},
		Version:         1,
	}
	if location != nil {
		report.Geo = models.NewGeoPoint(location.Longitude, location.Latitude)
	}
	return report, nil
}

// parseLocation decodes the optional location field. Blank and "null" mean no location.
func parseLocation(raw string) (*models.Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	result, err := compiledLocationSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidFormat, "location must be a JSON object")
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "invalid location: %s", strings.Join(problems, "; "))
	}

	var in locationInput
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidFormat, "location must be a JSON object")
	}

	loc := &models.Location{Address: strings.TrimSpace(in.Address)}
	if in.Lat != nil && in.Lng != nil {
		loc.Latitude, loc.Longitude = *in.Lat, *in.Lng
	} else {
		loc.Latitude, loc.Longitude = *in.Latitude, *in.Longitude
	}
	return loc, nil
}
