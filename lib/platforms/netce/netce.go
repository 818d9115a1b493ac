// Package netce reads completed coursework from the NetCE transcript. The
// account holds one transcript, not one per license.
package netce

import (
	"context"
	"regexp"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"
	"cetracker/lib/textutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.platforms.netce")

const (
	SiteID         = "netce"
	DefaultBaseURL = "https://www.netce.com"
)

type Adapter struct {
	site     sites.Site
	login    sites.LoginForm
	MaxPages int
}

func New(baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	site := sites.Site{
		ID:       SiteID,
		Name:     "NetCE",
		Category: sites.CategoryPlatform,
		Engine:   browser.EngineHTTP,
		BaseURL:  baseURL,
	}
	return &Adapter{
		site: site,
		login: sites.LoginForm{
			URL:      site.Link("/login"),
			Username: "input[name=email], input#email",
			Password: "input[name=password]",
			Submit:   "form#login button[type=submit], form#login input[type=submit]",
			Failure:  ".error-message, .validation-summary-errors",
			Surface:  []string{"/login"},
			Ready:    "a[href*=logout], .account-nav",
		},
	}
}

func (a *Adapter) Site() sites.Site {
	return a.site
}

func (a *Adapter) Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	ctx, span := tracer.Start(ctx, "netce:Authenticate")
	defer span.End()

	err := a.login.Login(ctx, page, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to login")
	}
	return err
}

// Discover returns nothing, the transcript is the only record.
func (a *Adapter) Discover(ctx context.Context, page browser.Page) ([]sites.SubRecord, error) {
	return nil, nil
}

var (
	totalHoursChain = scraper.Chain[string]{
		scraper.Selector(".transcript-summary .total-hours"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^total (contact )?hours`)),
		scraper.TextPattern(regexp.MustCompile(`(?i)([\d.]+)\s*total (?:contact )?hours`)),
	}
	professionChain = scraper.Chain[string]{
		scraper.Selector(".account-profile .profession"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^profession`)),
	}
	stateChain = scraper.Chain[string]{
		scraper.Selector(".account-profile .license-state"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^(license )?state`)),
	}
	licenseChain = scraper.Chain[string]{
		scraper.Selector(".account-profile .license-number"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^license\s*(number|#)`)),
	}
)

const transcriptPath = "/account/transcript"

func (a *Adapter) ExtractOne(ctx context.Context, page browser.Page, sub sites.SubRecord) (compliance.Extraction, error) {
	ctx, span := tracer.Start(ctx, "netce:ExtractOne")
	defer span.End()

	link := a.site.Link(transcriptPath)
	err := page.Navigate(ctx, link)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open transcript")
		return compliance.Extraction{}, err
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return compliance.Extraction{}, err
	}
	if doc.Find(transcriptTable).Length() == 0 {
		span.SetStatus(codes.Error, "no transcript table")
		return compliance.Extraction{}, &compliance.ExtractionError{Field: "transcript", Cause: browser.ErrNotFound}
	}

	sel := doc.Selection
	return compliance.Extraction{
		CredentialType:   professionChain.Text(sel),
		Jurisdiction:     stateChain.Text(sel),
		CredentialNumber: licenseChain.Text(sel),
		DeepLink:         link,
		HoursCompleted:   scraper.Hours(totalHoursChain, sel),
	}, nil
}

const (
	transcriptTable = "table.transcript"
	transcriptRows  = "table.transcript tbody"
	transcriptNext  = "a[rel=next], .pager li.next a"
	showAll         = "a.show-all"
)

// PaginateSecondary reads every page of the transcript. The page it starts on
// is the one ExtractOne left open.
func (a *Adapter) PaginateSecondary(ctx context.Context, page browser.Page, sub sites.SubRecord) ([]compliance.Course, error) {
	ctx, span := tracer.Start(ctx, "netce:PaginateSecondary")
	defer span.End()

	return scraper.Paginate(ctx, scraper.Pager[compliance.Course]{
		Site: SiteID,
		Widen: func(ctx context.Context) error {
			exists, err := browser.Exists(ctx, page, showAll)
			if err != nil || !exists {
				return err
			}
			return page.Click(ctx, showAll)
		},
		Rows: func(ctx context.Context) ([]compliance.Course, error) {
			doc, err := page.Document(ctx)
			if err != nil {
				return nil, err
			}
			var out []compliance.Course
			for _, cells := range htmlutil.TableRows(doc.Find(transcriptRows + " tr")) {
				// title, completion date, contact hours, certificate
				if len(cells) < 3 {
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
		Next: func(ctx context.Context) (bool, error) {
			return scraper.ClickNext(ctx, page, transcriptNext, transcriptRows)
		},
	}, a.MaxPages)
}
