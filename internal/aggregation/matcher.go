package aggregation

import (
	"sort"
	"strings"
	"time"

	"noisewatch/internal/escalation"
	"noisewatch/internal/models"
	contextutils "noisewatch/internal/utils"
)

// Config holds the matching rule parameters
type Config struct {
	RadiusMeters  float64
	Location      *time.Location
	MatchSameUser bool
	LookbackDays  int
}

// Sample is the part of a report the matcher looks at
type Sample struct {
	ID     string
	Reason string
	Lat    float64
	Lng    float64
	// HasLocation is false for reports stored at the [0, 0] placeholder
	HasLocation bool
	UserID      string
	CreatedAt   time.Time
	Days        int
	Open        bool
}

// Update raises one report's counter
type Update struct {
	ReportID string
	From     int
	To       int
}

// NormalizeReason lower-cases a reason and collapses runs of whitespace
func NormalizeReason(reason string) string {
	return strings.Join(strings.Fields(strings.ToLower(reason)), " ")
}

// SampleFromReport reduces a report to a Sample
func SampleFromReport(r *models.NoiseReport) Sample {
	s := Sample{
		ID:          r.ID,
		Reason:      NormalizeReason(r.Reason),
		Lat:         r.Geo.Lat(),
		Lng:         r.Geo.Lng(),
		HasLocation: r.Location != nil,
		CreatedAt:   r.CreatedAt,
		Days:        r.ConsecutiveDays,
		Open:        escalation.IsOpen(r.Status),
	}
	if r.UserID != nil {
		s.UserID = *r.UserID
	}
	return s
}

// Matches reports whether a and b describe the same disturbance. Reports without a location
// never match.
func (c Config) Matches(a, b Sample) bool {
	if !a.HasLocation || !b.HasLocation {
		return false
	}
	if a.Reason == "" || a.Reason != b.Reason {
		return false
	}
	if c.MatchSameUser && (a.UserID == "" || a.UserID != b.UserID) {
		return false
	}
	return HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng) <= c.RadiusMeters
}

// RunLength returns the length of the longest chain of consecutive calendar days containing
// the anchor's day where every day has at least one unresolved report matching the anchor.
func (c Config) RunLength(anchor Sample, pool []Sample) int {
	days := map[int]bool{0: true}
	for _, s := range pool {
		if s.ID == anchor.ID || !s.Open || !c.Matches(anchor, s) {
			continue
		}
		days[contextutils.DaysBetween(anchor.CreatedAt, s.CreatedAt, c.Location)] = true
	}

	run := 1
	for d := 1; days[d]; d++ {
		run++
	}
	for d := -1; days[d]; d-- {
		run++
	}
	return run
}

// Plan returns the counter raises for every open report created within the lookback window.
// Counters are never lowered. Updates are ordered by report id for stable output.
func (c Config) Plan(pool []Sample, now time.Time) []Update {
	var cutoff time.Time
	if c.LookbackDays > 0 {
		cutoff = contextutils.StartOfDay(now, c.Location).AddDate(0, 0, -(c.LookbackDays - 1))
	}

	byReason := make(map[string][]Sample)
	for _, s := range pool {
		byReason[s.Reason] = append(byReason[s.Reason], s)
	}

	var updates []Update
	for _, anchor := range pool {
		if !anchor.Open || anchor.CreatedAt.Before(cutoff) {
			continue
		}
		run := c.RunLength(anchor, byReason[anchor.Reason])
		if run > anchor.Days {
			updates = append(updates, Update{ReportID: anchor.ID, From: anchor.Days, To: run})
		}
	}

	sort.Slice(updates, func(i, j int) bool { return updates[i].ReportID < updates[j].ReportID })
	return updates
}
