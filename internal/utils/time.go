package contextutils

import (
	"time"
)

// DayKeyLayout is the layout used for calendar-day keys
const DayKeyLayout = "2006-01-02"

// StartOfDay returns local midnight of the calendar day containing t in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayKey returns the YYYY-MM-DD calendar day of t in loc
func DayKey(t time.Time, loc *time.Location) string {
	return StartOfDay(t, loc).Format(DayKeyLayout)
}

// DaysBetween returns the number of calendar days from a to b in loc.
// It is negative when b falls on an earlier day than a.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	da := StartOfDay(a, loc)
	db := StartOfDay(b, loc)
	// Construct dates in UTC to avoid DST-length days skewing the division
	ua := time.Date(da.Year(), da.Month(), da.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(db.Year(), db.Month(), db.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// LocalDayRange returns the UTC start and end timestamps that cover the
// last `days` calendar days in loc, counting the day containing now.
// The range is [startUTC, endUTC) where endUTC is the start of the following day.
func LocalDayRange(now time.Time, days int, loc *time.Location) (time.Time, time.Time) {
	if days <= 0 {
		days = 1
	}
	today := StartOfDay(now, loc)
	startLocal := today.AddDate(0, 0, -(days - 1))
	endLocal := today.AddDate(0, 0, 1)
	return startLocal.UTC(), endLocal.UTC()
}
