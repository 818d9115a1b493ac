// Package boards reads license status from state licensing board portals.
//
// The portals differ in their login step sequence and markup but not in the
// shape of what they report, so one adapter covers all of them, configured by
// a Profile per board.
package boards

import (
	"context"
	"fmt"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"
	"cetracker/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.platforms.boards")

type Adapter struct {
	profile Profile
	site    sites.Site
	login   sites.LoginForm
	fields  Fields
	// MaxPages bounds the reported CE listing, 0 means scraper.MaxPages.
	MaxPages int
}

// New builds the adapter for a profile, optionally pointing it at baseURL
// instead of the profile's own.
func New(profile Profile, baseURL string) (*Adapter, error) {
	if profile.ID == "" {
		return nil, fmt.Errorf("board profile has no id")
	}
	if baseURL == "" {
		baseURL = profile.BaseURL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("board %s has no base url", profile.ID)
	}
	engine := profile.Engine
	if engine == "" {
		engine = browser.EngineHTTP
	}

	site := sites.Site{
		ID:       profile.ID,
		Name:     profile.Name,
		Category: sites.CategoryBoard,
		Engine:   engine,
		BaseURL:  baseURL,
	}
	login := profile.Login
	login.URL = site.Link(login.URL)

	fields := profile.Fields
	if len(fields.CredentialType) == 0 && len(fields.Expiry) == 0 {
		fields = DefaultFields()
	}

	return &Adapter{
		profile: profile,
		site:    site,
		login:   login,
		fields:  fields,
	}, nil
}

func (a *Adapter) Site() sites.Site {
	return a.site
}

func (a *Adapter) Profile() Profile {
	return a.profile
}

func (a *Adapter) Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	ctx, span := tracer.Start(ctx, "boards:Authenticate")
	defer span.End()
	span.SetAttributes(
		attribute.String("board", a.profile.ID),
		attribute.Bool("two_step", a.login.Next != ""),
	)

	err := a.login.Login(ctx, page, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to login")
	}
	return err
}

// Discover lists the licensee's licenses, each row becoming a sub-record keyed
// by the row's detail link when it has one.
func (a *Adapter) Discover(ctx context.Context, page browser.Page) ([]sites.SubRecord, error) {
	ctx, span := tracer.Start(ctx, "boards:Discover")
	defer span.End()

	if a.profile.LicensesPath != "" {
		err := page.Navigate(ctx, a.site.Link(a.profile.LicensesPath))
		if err != nil {
			span.SetStatus(codes.Error, "failed to open license list")
			return nil, err
		}
	}
	if a.profile.LicenseRows == "" {
		return nil, nil
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return nil, err
	}

	var out []sites.SubRecord
	doc.Find(a.profile.LicenseRows).Each(func(_ int, row *goquery.Selection) {
		key := ""
		if a.profile.DetailLink != "" {
			href, ok := row.Find(a.profile.DetailLink).First().Attr("href")
			if ok {
				key = htmlutil.Resolve(doc.Url, href)
			}
		}
		out = append(out, sites.SubRecord{
			Key:   key,
			Label: htmlutil.Text(row),
			Index: len(out),
		})
	})
	return out, nil
}

// rowScope is the license row a sub-record came from, on the list page.
func (a *Adapter) rowScope(doc *goquery.Document, sub sites.SubRecord) *goquery.Selection {
	if a.profile.LicenseRows == "" {
		return doc.Selection
	}
	rows := doc.Find(a.profile.LicenseRows)
	if sub.Index >= rows.Length() {
		return doc.Selection
	}
	return rows.Eq(sub.Index)
}

// licenseTypeThreshold is the Jaro-Winkler similarity a scraped license type
// needs to be reported as one of the profile's known types.
const licenseTypeThreshold = 0.88

func (a *Adapter) licenseType(scraped string) string {
	if scraped == "" || len(a.profile.LicenseTypes) == 0 {
		return scraped
	}
	known, ok := textutil.BestMatch(scraped, a.profile.LicenseTypes, licenseTypeThreshold)
	if !ok {
		return scraped
	}
	return known
}

func (a *Adapter) ExtractOne(ctx context.Context, page browser.Page, sub sites.SubRecord) (compliance.Extraction, error) {
	ctx, span := tracer.Start(ctx, "boards:ExtractOne")
	defer span.End()

	onList := sub.Key == ""
	target := sub.Key
	if onList && a.profile.LicensesPath != "" {
		target = a.site.Link(a.profile.LicensesPath)
		location, err := page.Location(ctx)
		if err != nil {
			return compliance.Extraction{}, err
		}
		if location == target {
			target = ""
		}
	}
	if target != "" {
		err := page.Navigate(ctx, target)
		if err != nil {
			span.SetStatus(codes.Error, "failed to open license")
			return compliance.Extraction{}, err
		}
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return compliance.Extraction{}, err
	}
	scope := doc.Selection
	if onList {
		scope = a.rowScope(doc, sub)
	}

	link := sub.Key
	if link == "" {
		link, _ = page.Location(ctx)
	}
	expiry := scraper.Date(a.fields.Expiry, scope)
	ex := compliance.Extraction{
		Jurisdiction:        a.profile.Jurisdiction,
		CredentialType:      a.licenseType(a.fields.CredentialType.Text(scope)),
		CredentialNumber:    a.fields.CredentialNumber.Text(scope),
		DeepLink:            link,
		RenewalDeadline:     expiry,
		HoursRequired:       scraper.Hours(a.fields.HoursRequired, scope),
		HoursCompleted:      scraper.Hours(a.fields.HoursCompleted, scope),
		CertificationStatus: a.fields.Status.Text(scope),
		CertificationExpiry: expiry,
	}
	if ex.CredentialNumber == "" && ex.CredentialType == "" {
		span.SetStatus(codes.Error, "no license details")
		return ex, &compliance.ExtractionError{Field: "license", Cause: browser.ErrNotFound}
	}
	if a.profile.CourseRows == "" {
		// the board keeps no CE listing
		ex.Courses = []compliance.Course{}
	}
	return ex, nil
}

// PaginateSecondary reads the CE the licensee reported to the board, from the
// license page ExtractOne left open.
func (a *Adapter) PaginateSecondary(ctx context.Context, page browser.Page, sub sites.SubRecord) ([]compliance.Course, error) {
	ctx, span := tracer.Start(ctx, "boards:PaginateSecondary")
	defer span.End()

	if a.profile.CourseRows == "" {
		return nil, nil
	}
	pager := scraper.Pager[compliance.Course]{
		Site: a.profile.ID,
		Rows: func(ctx context.Context) ([]compliance.Course, error) {
			doc, err := page.Document(ctx)
			if err != nil {
				return nil, err
			}
			var out []compliance.Course
			for _, cells := range htmlutil.TableRows(doc.Find(a.profile.CourseRows)) {
				if len(cells) < 3 || cells[0] == "" {
					continue
				}
				out = append(out, compliance.Course{
					Name:  cells[0],
					Date:  textutil.NormalizeDate(cells[1]),
					Hours: textutil.ParseHours(cells[2]),
				})
			}
			return out, nil
		},
	}
	if a.profile.CourseNext != "" {
		pager.Next = func(ctx context.Context) (bool, error) {
			return scraper.ClickNext(ctx, page, a.profile.CourseNext, a.profile.CourseRows)
		}
	}
	return scraper.Paginate(ctx, pager, a.MaxPages)
}
