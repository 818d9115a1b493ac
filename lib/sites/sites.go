// Package sites defines what every external source implements and the
// pipeline that turns an authenticated page into compliance records.
package sites

import (
	"context"
	"net/url"
	"strings"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
)

type Category string

const (
	CategoryPrimary  Category = "primary"
	CategoryPlatform Category = "platform"
	CategoryBoard    Category = "board"
)

type Site struct {
	ID       string
	Name     string
	Category Category
	// Engine is the kind of page the adapter expects to drive.
	Engine  browser.Engine
	BaseURL string
}

// Link resolves path against the site's base URL.
func (s Site) Link(path string) string {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String()
}

// SubRecord is one license or credential found under an account.
type SubRecord struct {
	// Key is the site's own identifier for the sub-record, possibly empty.
	Key   string
	Label string
	Index int
}

func (s SubRecord) describe() string {
	switch {
	case s.Label != "":
		return s.Label
	case s.Key != "":
		return s.Key
	}
	return "current view"
}

// Adapter implements authentication and extraction against one external source.
type Adapter interface {
	Site() Site
	Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error
	// Discover lists the sub-records of the account. An empty result means the
	// current view is the only record.
	Discover(ctx context.Context, page browser.Page) ([]SubRecord, error)
	// ExtractOne reads one sub-record. Fields it cannot find are left empty.
	ExtractOne(ctx context.Context, page browser.Page, sub SubRecord) (compliance.Extraction, error)
	// PaginateSecondary reads the full course history of a sub-record. It is
	// only called when ExtractOne reported neither a summary nor courses.
	PaginateSecondary(ctx context.Context, page browser.Page, sub SubRecord) ([]compliance.Course, error)
}
