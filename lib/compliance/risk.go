package compliance

import (
	"time"

	"cetracker/lib/timezone"
)

type Risk string

const (
	RiskUnknown  Risk = "unknown"
	RiskComplete Risk = "complete"
	RiskOverdue  Risk = "overdue"
	RiskAtRisk   Risk = "at_risk"
	RiskOnTrack  Risk = "on_track"
)

// RiskPolicy classifies how close a record is to missing its renewal.
type RiskPolicy func(r Record, now time.Time) Risk

// AtRiskWindow is the number of days before a deadline at which any record
// with hours outstanding counts as at risk.
const AtRiskWindow = 60

// DeadlineWindowPolicy returns a policy that flags any record with outstanding
// hours as at risk once the deadline is within `window` days, regardless of how
// many hours remain.
func DeadlineWindowPolicy(window int) RiskPolicy {
	return func(r Record, now time.Time) Risk {
		if r.HoursRemaining == nil {
			return RiskUnknown
		}
		if *r.HoursRemaining <= 0 {
			return RiskComplete
		}
		days, err := timezone.DaysUntil(r.RenewalDeadline, now)
		if err != nil {
			return RiskUnknown
		}
		switch {
		case days < 0:
			return RiskOverdue
		case days <= window:
			return RiskAtRisk
		default:
			return RiskOnTrack
		}
	}
}

var DefaultRiskPolicy = DeadlineWindowPolicy(AtRiskWindow)
