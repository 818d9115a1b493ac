package compliance

import (
	"time"
)

// AuthoritativeSummary is a completed/remaining tally reported directly by the
// source. When present it takes precedence over anything summed from history.
type AuthoritativeSummary struct {
	Completed *float64
	Remaining *float64
}

// Extraction is what a site adapter reads for one sub-record, before normalization.
type Extraction struct {
	Jurisdiction     string
	CredentialType   string
	CredentialNumber string
	ExternalID       string
	DeepLink         string
	RenewalDeadline  string

	HoursRequired  *float64
	HoursCompleted *float64
	// HoursRemaining is only set when the source reports it.
	HoursRemaining *float64

	Summary *AuthoritativeSummary

	SubjectAreas []SubjectArea
	Courses      []Course

	CertificationStatus   string
	CertificationExpiry   string
	PharmacologyRequired  *float64
	PharmacologyCompleted *float64
}

// Normalize assembles an Extraction into a Record.
//
// Precedence for completed and remaining hours: authoritative summary, then the
// value the page reported, then the sum of course history (completed only).
// When no source-reported remaining value exists it is derived as
// max(0, required - completed).
func Normalize(p Provider, siteID string, ex Extraction, now time.Time) Record {
	completed := ex.HoursCompleted
	remaining := ex.HoursRemaining
	if ex.Summary != nil {
		if ex.Summary.Completed != nil {
			completed = ex.Summary.Completed
		}
		if ex.Summary.Remaining != nil {
			remaining = ex.Summary.Remaining
		}
	}
	if completed == nil && len(ex.Courses) > 0 {
		completed = SumCourseHours(ex.Courses)
	}
	if remaining == nil {
		remaining = RemainingHours(ex.HoursRequired, completed)
	}

	subjects := ex.SubjectAreas
	if subjects == nil {
		subjects = []SubjectArea{}
	}
	courses := ex.Courses
	if courses == nil {
		courses = []Course{}
	}

	return Record{
		ProviderName:     p.Name,
		ProviderType:     p.Type,
		SiteID:           siteID,
		Jurisdiction:     ex.Jurisdiction,
		CredentialType:   ex.CredentialType,
		CredentialNumber: ex.CredentialNumber,
		ExternalID:       ex.ExternalID,
		DeepLink:         ex.DeepLink,
		RenewalDeadline:  ex.RenewalDeadline,
		HoursRequired:    ex.HoursRequired,
		HoursCompleted:   completed,
		HoursRemaining:   remaining,
		SubjectAreas:     subjects,
		CompletedCourses: courses,

		CertificationStatus:   ex.CertificationStatus,
		CertificationExpiry:   ex.CertificationExpiry,
		PharmacologyRequired:  ex.PharmacologyRequired,
		PharmacologyCompleted: ex.PharmacologyCompleted,

		LastUpdated: now,
	}
}

// Placeholder is the record emitted for a provider nothing could be extracted for.
func Placeholder(p Provider, siteID string, now time.Time) Record {
	return Record{
		ProviderName:     p.Name,
		ProviderType:     p.Type,
		SiteID:           siteID,
		SubjectAreas:     []SubjectArea{},
		CompletedCourses: []Course{},
		LastUpdated:      now,
	}
}

// RemainingHours returns max(0, required - completed), or nil if either is unknown.
func RemainingHours(required, completed *float64) *float64 {
	if required == nil || completed == nil {
		return nil
	}
	return Float(max(0, *required-*completed))
}

// SumCourseHours sums the known hours of the given courses, nil when none are known.
func SumCourseHours(courses []Course) *float64 {
	var total float64
	known := false
	for _, c := range courses {
		if c.Hours == nil {
			continue
		}
		total += *c.Hours
		known = true
	}
	if !known {
		return nil
	}
	return &total
}
