package boards

import (
	"regexp"

	"cetracker/lib/browser"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"
)

// Fields holds the fallback chain for each field a board may render.
type Fields struct {
	CredentialType   scraper.Chain[string]
	CredentialNumber scraper.Chain[string]
	Status           scraper.Chain[string]
	Expiry           scraper.Chain[string]
	HoursRequired    scraper.Chain[string]
	HoursCompleted   scraper.Chain[string]
}

// Profile describes one licensing board's portal.
type Profile struct {
	ID           string
	Name         string
	Jurisdiction string
	BaseURL      string
	// Engine defaults to http, boards mostly render on the server.
	Engine browser.Engine

	// Login paths are relative to BaseURL.
	Login sites.LoginForm

	// LicensesPath lists the licensee's licenses, one LicenseRows match each.
	LicensesPath string
	LicenseRows  string
	// DetailLink optionally matches the anchor in a row that opens the license.
	DetailLink string

	Fields Fields
	// LicenseTypes optionally lists the license types the board issues, a
	// scraped type is reported as the closest of them.
	LicenseTypes []string

	// CourseRows optionally matches the reported CE rows on a license page,
	// cells being name, date, hours. CourseNext pages through them.
	CourseRows string
	CourseNext string
}

func label(pattern string) scraper.Strategy[string] {
	return scraper.LabelValue(regexp.MustCompile(`(?i)^` + pattern))
}

// DefaultFields is what most board portals render, a label and value per field.
func DefaultFields() Fields {
	return Fields{
		CredentialType: scraper.Chain[string]{
			scraper.Selector(".license-type"),
			label(`(license|credential) type`),
			label(`profession`),
		},
		CredentialNumber: scraper.Chain[string]{
			scraper.Selector(".license-number"),
			label(`license\s*(number|no\.?|#)`),
		},
		Status: scraper.Chain[string]{
			scraper.Selector(".license-status"),
			label(`(license )?status`),
		},
		Expiry: scraper.Chain[string]{
			scraper.Selector(".expiration-date"),
			label(`(expiration|expires|expiry)( date)?`),
			label(`renewal (due|date)`),
		},
		HoursRequired: scraper.Chain[string]{
			scraper.Selector(".ce-required"),
			label(`(ce|continuing education) hours required`),
			label(`hours required`),
		},
		HoursCompleted: scraper.Chain[string]{
			scraper.Selector(".ce-reported"),
			label(`(ce|continuing education) hours (reported|completed)`),
			label(`hours (reported|completed)`),
		},
	}
}

// With returns a copy of f where each non-empty chain of override is tried
// before the default one.
func (f Fields) With(override Fields) Fields {
	prepend := func(first, rest scraper.Chain[string]) scraper.Chain[string] {
		if len(first) == 0 {
			return rest
		}
		out := make(scraper.Chain[string], 0, len(first)+len(rest))
		out = append(out, first...)
		return append(out, rest...)
	}
	return Fields{
		CredentialType:   prepend(override.CredentialType, f.CredentialType),
		CredentialNumber: prepend(override.CredentialNumber, f.CredentialNumber),
		Status:           prepend(override.Status, f.Status),
		Expiry:           prepend(override.Expiry, f.Expiry),
		HoursRequired:    prepend(override.HoursRequired, f.HoursRequired),
		HoursCompleted:   prepend(override.HoursCompleted, f.HoursCompleted),
	}
}
