// Package ceufast reads the certificates earned on CEUfast. Every completed
// course renders as a certificate card, so the course list is read directly
// and there is no history to page through.
package ceufast

import (
	"context"
	"regexp"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.platforms.ceufast")

const (
	SiteID         = "ceufast"
	DefaultBaseURL = "https://ceufast.com"
)

type Adapter struct {
	site  sites.Site
	login sites.LoginForm
}

func New(baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	site := sites.Site{
		ID:       SiteID,
		Name:     "CEUfast",
		Category: sites.CategoryPlatform,
		Engine:   browser.EngineHTTP,
		BaseURL:  baseURL,
	}
	return &Adapter{
		site: site,
		login: sites.LoginForm{
			URL:      site.Link("/login"),
			Username: "input[name=username], input[name=email]",
			Password: "input[name=password]",
			Submit:   "form.login-form [type=submit]",
			Failure:  ".alert-danger, .login-error",
			Surface:  []string{"/login"},
			Ready:    ".member-menu, a[href*=logout]",
		},
	}
}

func (a *Adapter) Site() sites.Site {
	return a.site
}

func (a *Adapter) Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	ctx, span := tracer.Start(ctx, "ceufast:Authenticate")
	defer span.End()

	err := a.login.Login(ctx, page, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to login")
	}
	return err
}

func (a *Adapter) Discover(ctx context.Context, page browser.Page) ([]sites.SubRecord, error) {
	return nil, nil
}

var (
	cardTitle = scraper.Chain[string]{
		scraper.Selector(".course-title"),
		scraper.Selector("h3, h4"),
	}
	cardDate = scraper.Chain[string]{
		scraper.Selector(".completed-on"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^(completed|date)`)),
		scraper.Attr("time", "datetime"),
	}
	cardHours = scraper.Chain[string]{
		scraper.Selector(".contact-hours"),
		scraper.TextPattern(regexp.MustCompile(`(?i)([\d.]+)\s*(?:contact hours|ceus?|hours)`)),
	}
	stateChain = scraper.Chain[string]{
		scraper.Selector(".profile-summary .state"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^state`)),
	}
	professionChain = scraper.Chain[string]{
		scraper.Selector(".profile-summary .profession"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^profession`)),
	}
)

const certificatesPath = "/my-account/certificates"

func (a *Adapter) ExtractOne(ctx context.Context, page browser.Page, sub sites.SubRecord) (compliance.Extraction, error) {
	ctx, span := tracer.Start(ctx, "ceufast:ExtractOne")
	defer span.End()

	link := a.site.Link(certificatesPath)
	err := page.Navigate(ctx, link)
	if err != nil {
		span.SetStatus(codes.Error, "failed to open certificates")
		return compliance.Extraction{}, err
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return compliance.Extraction{}, err
	}
	list := doc.Find(".certificates, #certificates").First()
	if list.Length() == 0 {
		span.SetStatus(codes.Error, "no certificate list")
		return compliance.Extraction{}, &compliance.ExtractionError{Field: "certificates", Cause: browser.ErrNotFound}
	}

	courses := []compliance.Course{}
	list.Find(".certificate-card, .certificate").Each(func(_ int, card *goquery.Selection) {
		name := cardTitle.Text(card)
		if name == "" {
			name = htmlutil.Text(card.Find("a").First())
		}
		if name == "" {
			return
		}
		courses = append(courses, compliance.Course{
			Name:  name,
			Date:  scraper.Date(cardDate, card),
			Hours: scraper.Hours(cardHours, card),
		})
	})

	sel := doc.Selection
	return compliance.Extraction{
		CredentialType: professionChain.Text(sel),
		Jurisdiction:   stateChain.Text(sel),
		DeepLink:       link,
		Courses:        courses,
	}, nil
}

// PaginateSecondary is never needed, ExtractOne always fills the courses.
func (a *Adapter) PaginateSecondary(ctx context.Context, page browser.Page, sub sites.SubRecord) ([]compliance.Course, error) {
	return nil, nil
}
