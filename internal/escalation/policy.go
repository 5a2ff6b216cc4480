// Package escalation holds the report escalation policy: which responses an administrator may
// send for a noise report given its severity and how many consecutive days it has been reported.
//
// Everything here is a pure function of its arguments. No I/O, no clocks, no errors.
package escalation

import (
	"strconv"
	"strings"
)

// NoiseLevel is the observed severity of a report
type NoiseLevel string

// Status is the administrative state of a report
type Status string

const (
	// LevelRed is high severity noise
	LevelRed NoiseLevel = "red"
	// LevelYellow is medium severity noise
	LevelYellow NoiseLevel = "yellow"
	// LevelGreen is low severity noise
	LevelGreen NoiseLevel = "green"
)

const (
	// StatusPending is the state of every new report and the reset target
	StatusPending Status = "pending"
	// StatusMonitoring means the barangay is watching the location
	StatusMonitoring Status = "monitoring"
	// StatusActionRequired means the disturbance needs an intervention
	StatusActionRequired Status = "action_required"
	// StatusResolved closes the report
	StatusResolved Status = "resolved"
)

// Display labels for each status
const (
	LabelPending        = "Pending"
	LabelMonitoring     = "Monitoring"
	LabelActionRequired = "Action Required"
	LabelResolved       = "Resolved"
)

// PendingText is shown to the citizen before any response has been chosen
const PendingText = "No response sent yet."

// Option is one response an administrator may send
type Option struct {
	Status  Status `json:"status"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// AllLevels lists the noise levels in severity order
var AllLevels = []NoiseLevel{LevelRed, LevelYellow, LevelGreen}

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{StatusPending, StatusMonitoring, StatusActionRequired, StatusResolved}

const (
	monitoringProgress = "We have received your report. The barangay is monitoring this location. Progress: Day {days} of {threshold} consecutive reports for {level} noise."
	actionRequired     = "This location has been reported for {threshold} consecutive days. A barangay officer has been assigned to address the noise disturbance."

	redResolved    = "Your noise complaint has been resolved. Appropriate action has been taken by the barangay."
	yellowResolved = "Your noise complaint has been resolved. The barangay has addressed the issue."

	greenMonitoring = "We have received your report. This minor noise is under observation. The barangay advises communicating with neighbors to settle the matter amicably."
	greenResolved   = "Advice has been provided to the concerned parties. The matter is now closed."
)

// thresholds maps a level to the consecutive-day count that unlocks action_required.
// Green has no entry: it never escalates.
var thresholds = map[NoiseLevel]int{
	LevelRed:    3,
	LevelYellow: 5,
}

// Threshold returns the consecutive-day count at which action_required becomes available,
// or 0 when the level never escalates.
func Threshold(level NoiseLevel) int {
	return thresholds[level]
}

// Options returns the ordered responses available for a report. Days below 1 count as 1.
// An unknown level yields no options.
func Options(level NoiseLevel, consecutiveDays int) []Option {
	if consecutiveDays < 1 {
		consecutiveDays = 1
	}

	switch level {
	case LevelRed:
		return escalatingOptions(level, consecutiveDays, redResolved)
	case LevelYellow:
		return escalatingOptions(level, consecutiveDays, yellowResolved)
	case LevelGreen:
		return []Option{
			{Status: StatusMonitoring, Label: LabelMonitoring, Message: greenMonitoring},
			{Status: StatusResolved, Label: LabelResolved, Message: greenResolved},
		}
	default:
		return nil
	}
}

func escalatingOptions(level NoiseLevel, days int, resolved string) []Option {
	threshold := thresholds[level]
	r := strings.NewReplacer(
		"{days}", strconv.Itoa(days),
		"{threshold}", strconv.Itoa(threshold),
		"{level}", strings.ToUpper(string(level)),
	)

	opts := make([]Option, 0, 3)
	opts = append(opts, Option{Status: StatusMonitoring, Label: LabelMonitoring, Message: r.Replace(monitoringProgress)})
	if days >= threshold {
		opts = append(opts, Option{Status: StatusActionRequired, Label: LabelActionRequired, Message: r.Replace(actionRequired)})
	}
	opts = append(opts, Option{Status: StatusResolved, Label: LabelResolved, Message: resolved})
	return opts
}

// Allows reports whether target is a permitted next status. Pending is always permitted as a reset.
func Allows(level NoiseLevel, consecutiveDays int, target Status) bool {
	if target == StatusPending {
		return true
	}
	_, ok := Find(level, consecutiveDays, target)
	return ok
}

// Find returns the option for target, if the policy offers it
func Find(level NoiseLevel, consecutiveDays int, target Status) (Option, bool) {
	for _, opt := range Options(level, consecutiveDays) {
		if opt.Status == target {
			return opt, true
		}
	}
	return Option{}, false
}

// ResponseText is the citizen-facing text for a report currently in status.
// A status the policy does not offer for this level and day count falls back to the pending text.
func ResponseText(level NoiseLevel, consecutiveDays int, status Status) string {
	if status == StatusPending {
		return PendingText
	}
	if opt, ok := Find(level, consecutiveDays, status); ok {
		return opt.Message
	}
	return PendingText
}

// Label returns the display label of a status
func Label(status Status) string {
	switch status {
	case StatusPending:
		return LabelPending
	case StatusMonitoring:
		return LabelMonitoring
	case StatusActionRequired:
		return LabelActionRequired
	case StatusResolved:
		return LabelResolved
	default:
		return string(status)
	}
}

// ParseNoiseLevel normalizes s and reports whether it names a known level
func ParseNoiseLevel(s string) (NoiseLevel, bool) {
	level := NoiseLevel(strings.ToLower(strings.TrimSpace(s)))
	switch level {
	case LevelRed, LevelYellow, LevelGreen:
		return level, true
	}
	return "", false
}

// ParseStatus normalizes s and reports whether it names a known status
func ParseStatus(s string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusPending, StatusMonitoring, StatusActionRequired, StatusResolved:
		return status, true
	}
	return "", false
}

// IsOpen reports whether a report in status still needs attention
func IsOpen(status Status) bool {
	return status != StatusResolved
}
