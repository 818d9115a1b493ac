package compliance

import (
	"time"
)

// Credential is one set of login details for one provider on one site.
type Credential struct {
	ProviderID string `json:"provider_id"`
	SiteID     string `json:"site_id"`
	Username   string `json:"username"`
	Secret     string `json:"-"`
}

// Provider is a license holder on the roster.
type Provider struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Credentials []Credential `json:"credentials"`
}

// CredentialFor returns the provider's credential for a site.
func (p Provider) CredentialFor(siteID string) (Credential, bool) {
	for _, c := range p.Credentials {
		if c.SiteID == siteID {
			return c, true
		}
	}
	return Credential{}, false
}

// Roster is the ordered list of providers a batch runs over.
type Roster struct {
	Providers []Provider `json:"providers"`
}

// HasSite reports whether any provider carries a credential for the site.
func (r Roster) HasSite(siteID string) bool {
	for _, p := range r.Providers {
		if _, ok := p.CredentialFor(siteID); ok {
			return true
		}
	}
	return false
}

type SubjectArea struct {
	TopicName      string   `json:"topic_name"`
	HoursRequired  *float64 `json:"hours_required"`
	HoursCompleted *float64 `json:"hours_completed"`
	HoursNeeded    *float64 `json:"hours_needed"`
}

type Course struct {
	Name  string   `json:"name"`
	Hours *float64 `json:"hours"`
	Date  string   `json:"date"`
}

// Record is the normalized compliance status of one license or credential.
//
// Nil hour fields mean the value could not be determined, which is not the same as zero.
// Empty strings likewise mean unknown.
type Record struct {
	ProviderName     string        `json:"provider_name"`
	ProviderType     string        `json:"provider_type"`
	SiteID           string        `json:"site_id"`
	Jurisdiction     string        `json:"jurisdiction"`
	CredentialType   string        `json:"credential_type"`
	CredentialNumber string        `json:"credential_number"`
	ExternalID       string        `json:"external_id"`
	DeepLink         string        `json:"deep_link"`
	RenewalDeadline  string        `json:"renewal_deadline"`
	HoursRequired    *float64      `json:"hours_required"`
	HoursCompleted   *float64      `json:"hours_completed"`
	HoursRemaining   *float64      `json:"hours_remaining"`
	SubjectAreas     []SubjectArea `json:"subject_areas"`
	CompletedCourses []Course      `json:"completed_courses"`

	CertificationStatus   string   `json:"certification_status,omitempty"`
	CertificationExpiry   string   `json:"certification_expiry,omitempty"`
	PharmacologyRequired  *float64 `json:"pharmacology_required,omitempty"`
	PharmacologyCompleted *float64 `json:"pharmacology_completed,omitempty"`

	LastUpdated time.Time `json:"last_updated"`
}

// IsPlaceholder reports whether the record carries no extracted data.
func (r Record) IsPlaceholder() bool {
	return r.HoursRequired == nil &&
		r.HoursCompleted == nil &&
		r.HoursRemaining == nil &&
		r.CredentialNumber == "" &&
		r.ExternalID == "" &&
		len(r.SubjectAreas) == 0 &&
		len(r.CompletedCourses) == 0
}

// Float returns a pointer to v, for filling nullable hour fields.
func Float(v float64) *float64 {
	return &v
}
