// Package aanp reads national nurse practitioner certifications. A member can
// hold several certifications, each with its own status, expiry, CE progress
// and pharmacology sub-total.
package aanp

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"
	"cetracker/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.platforms.aanp")

const (
	SiteID         = "aanp"
	DefaultBaseURL = "https://www.aanpcert.org"
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
		Name:     "AANP Certification Board",
		Category: sites.CategoryPlatform,
		Engine:   browser.EngineChrome,
		BaseURL:  baseURL,
	}
	return &Adapter{
		site: site,
		login: sites.LoginForm{
			URL:      site.Link("/account/login"),
			Username: "input#Email, input[name=Email]",
			Password: "input#Password, input[name=Password]",
			Submit:   "button#login-submit, form[action*=login] button[type=submit]",
			Failure:  ".field-validation-error, .text-danger.validation-summary-errors",
			Surface:  []string{"/account/login"},
			Ready:    "#certifications, .certification",
		},
	}
}

func (a *Adapter) Site() sites.Site {
	return a.site
}

func (a *Adapter) Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	ctx, span := tracer.Start(ctx, "aanp:Authenticate")
	defer span.End()

	err := a.login.Login(ctx, page, cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to login")
	}
	return err
}

const certificationsPath = "/certification"

// Discover lists the member's certifications.
func (a *Adapter) Discover(ctx context.Context, page browser.Page) ([]sites.SubRecord, error) {
	ctx, span := tracer.Start(ctx, "aanp:Discover")
	defer span.End()

	err := page.Navigate(ctx, a.site.Link(certificationsPath))
	if err != nil {
		span.SetStatus(codes.Error, "failed to open certifications")
		return nil, err
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return nil, err
	}

	var out []sites.SubRecord
	doc.Find(".certification[data-cert-id]").Each(func(_ int, card *goquery.Selection) {
		out = append(out, sites.SubRecord{
			Key:   card.AttrOr("data-cert-id", ""),
			Label: htmlutil.Text(card.Find(".cert-name").First()),
			Index: len(out),
		})
	})
	return out, nil
}

var (
	nameChain = scraper.Chain[string]{
		scraper.Selector(".cert-detail .cert-name"),
		scraper.Selector("h1"),
	}
	numberChain = scraper.Chain[string]{
		scraper.Selector(".cert-number"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^certification (number|#|id)`)),
	}
	statusChain = scraper.Chain[string]{
		scraper.Selector(".cert-status"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^status`)),
	}
	expiryChain = scraper.Chain[string]{
		scraper.Selector(".cert-expiration"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^(expiration|expires)`)),
	}
	requiredChain = scraper.Chain[string]{
		scraper.Selector(".ce-progress .required"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^ce hours required`)),
	}
	earnedChain = scraper.Chain[string]{
		scraper.Selector(".ce-progress .earned"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^ce hours (earned|completed)`)),
	}
	pharmRequiredChain = scraper.Chain[string]{
		scraper.Selector(".pharm-progress .required"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^pharmacology (hours )?required`)),
	}
	pharmEarnedChain = scraper.Chain[string]{
		scraper.Selector(".pharm-progress .earned"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^pharmacology (hours )?(earned|completed)`)),
	}
)

func (a *Adapter) detailLink(sub sites.SubRecord) string {
	return a.site.Link(fmt.Sprintf("%s/%s", certificationsPath, url.PathEscape(sub.Key)))
}

func (a *Adapter) ExtractOne(ctx context.Context, page browser.Page, sub sites.SubRecord) (compliance.Extraction, error) {
	ctx, span := tracer.Start(ctx, "aanp:ExtractOne")
	defer span.End()

	link, err := page.Location(ctx)
	if err != nil {
		return compliance.Extraction{}, err
	}
	if sub.Key != "" {
		link = a.detailLink(sub)
		err := page.Navigate(ctx, link)
		if err != nil {
			span.SetStatus(codes.Error, "failed to open certification")
			return compliance.Extraction{}, err
		}
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return compliance.Extraction{}, err
	}
	sel := doc.Selection

	expiry := scraper.Date(expiryChain, sel)
	ex := compliance.Extraction{
		CredentialType:        nameChain.Text(sel),
		CredentialNumber:      numberChain.Text(sel),
		ExternalID:            sub.Key,
		DeepLink:              link,
		RenewalDeadline:       expiry,
		HoursRequired:         scraper.Hours(requiredChain, sel),
		HoursCompleted:        scraper.Hours(earnedChain, sel),
		CertificationStatus:   textutil.Clean(statusChain.Text(sel)),
		CertificationExpiry:   expiry,
		PharmacologyRequired:  scraper.Hours(pharmRequiredChain, sel),
		PharmacologyCompleted: scraper.Hours(pharmEarnedChain, sel),
	}
	if ex.CredentialType == "" {
		ex.CredentialType = sub.Label
	}
	if ex.CertificationStatus == "" && ex.CredentialNumber == "" {
		span.SetStatus(codes.Error, "no certification on page")
		return ex, &compliance.ExtractionError{Field: "certification", Cause: browser.ErrNotFound}
	}
	if ex.PharmacologyRequired != nil {
		ex.SubjectAreas = []compliance.SubjectArea{{
			TopicName:      "Pharmacology",
			HoursRequired:  ex.PharmacologyRequired,
			HoursCompleted: ex.PharmacologyCompleted,
			HoursNeeded:    compliance.RemainingHours(ex.PharmacologyRequired, ex.PharmacologyCompleted),
		}}
	}
	return ex, nil
}

const (
	activityRows = "table.ce-activities tbody"
	activityNext = ".pager a.next:not(.disabled), .pager li:not(.disabled) > a[rel=next]"
)

// PaginateSecondary reads the CE activities logged against a certification.
func (a *Adapter) PaginateSecondary(ctx context.Context, page browser.Page, sub sites.SubRecord) ([]compliance.Course, error) {
	ctx, span := tracer.Start(ctx, "aanp:PaginateSecondary")
	defer span.End()

	if sub.Key != "" {
		err := page.Navigate(ctx, a.detailLink(sub)+"/activities")
		if err != nil {
			return nil, err
		}
	}
	return scraper.Paginate(ctx, scraper.Pager[compliance.Course]{
		Site: SiteID,
		Rows: func(ctx context.Context) ([]compliance.Course, error) {
			doc, err := page.Document(ctx)
			if err != nil {
				return nil, err
			}
			var out []compliance.Course
			for _, cells := range htmlutil.TableRows(doc.Find(activityRows + " tr")) {
				// date, activity, provider, hours, pharmacology hours
				if len(cells) < 4 {
					continue
				}
				out = append(out, compliance.Course{
					Name:  cells[1],
					Date:  textutil.NormalizeDate(cells[0]),
					Hours: textutil.ParseHours(cells[3]),
				})
			}
			return out, nil
		},
		Next: func(ctx context.Context) (bool, error) {
			return scraper.ClickNext(ctx, page, activityNext, activityRows)
		},
	}, a.MaxPages)
}
