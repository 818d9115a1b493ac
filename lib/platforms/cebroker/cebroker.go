// Package cebroker reads license compliance from the primary credential
// tracking portal.
//
// One account may hold several licenses, listed in a selector on the
// dashboard. Each license is in one of two tiers: professional accounts render
// a summary block with posted and needed hours, basic accounts only show the
// hours required and a paged course history that has to be summed.
package cebroker

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.platforms.cebroker")

const (
	SiteID         = "cebroker"
	DefaultBaseURL = "https://licensees.cebroker.com"
)

// Overlays are the first-run help guide elements that intercept clicks.
var Overlays = []string{
	"#pendo-base",
	"#pendo-backdrop",
	"[id^=pendo-guide]",
	".pendo-overlay",
}

type Adapter struct {
	site  sites.Site
	login sites.LoginForm
	// MaxPages bounds the course history walk, 0 means scraper.MaxPages.
	MaxPages int
}

func New(baseURL string) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, err
	}
	site := sites.Site{
		ID:       SiteID,
		Name:     "CE Broker",
		Category: sites.CategoryPrimary,
		Engine:   browser.EngineChrome,
		BaseURL:  parsed.String(),
	}
	return &Adapter{
		site: site,
		login: sites.LoginForm{
			URL:      site.Link("/login"),
			Username: "input#username, input[name=username], input[type=email]",
			Next:     "button#next, button[data-step=identify]",
			Password: "input#password, input[type=password]",
			Submit:   "button#sign-in, button[type=submit]",
			Failure:  ".login-error, .alert-danger",
			Surface:  []string{"/login"},
			Ready:    "#license-selector, .license-header, .dashboard",
		},
	}, nil
}

func (a *Adapter) Site() sites.Site {
	return a.site
}

func (a *Adapter) Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	ctx, span := tracer.Start(ctx, "cebroker:Authenticate")
	defer span.End()

	err := a.login.Login(ctx, scraper.Guard(page, Overlays...), cred)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to login")
		return err
	}
	return nil
}

var licenseOptions = scraper.Chain[[]sites.SubRecord]{
	scraper.StrategyFunc[[]sites.SubRecord](optionsOf("select#license-selector option, select[name=license] option")),
	scraper.StrategyFunc[[]sites.SubRecord](cardsOf(".license-card[data-license-id]")),
}

func optionsOf(css string) func(sel *goquery.Selection) ([]sites.SubRecord, bool) {
	return func(sel *goquery.Selection) ([]sites.SubRecord, bool) {
		var out []sites.SubRecord
		sel.Find(css).Each(func(_ int, opt *goquery.Selection) {
			key := strings.TrimSpace(opt.AttrOr("value", ""))
			if key == "" {
				return
			}
			out = append(out, sites.SubRecord{Key: key, Label: htmlutil.Text(opt), Index: len(out)})
		})
		return out, len(out) > 0
	}
}

func cardsOf(css string) func(sel *goquery.Selection) ([]sites.SubRecord, bool) {
	return func(sel *goquery.Selection) ([]sites.SubRecord, bool) {
		var out []sites.SubRecord
		sel.Find(css).Each(func(_ int, card *goquery.Selection) {
			out = append(out, sites.SubRecord{
				Key:   card.AttrOr("data-license-id", ""),
				Label: htmlutil.Text(card.Find(".license-name").First()),
				Index: len(out),
			})
		})
		return out, len(out) > 0
	}
}

// Discover lists the licenses in the dashboard's license selector.
func (a *Adapter) Discover(ctx context.Context, page browser.Page) ([]sites.SubRecord, error) {
	ctx, span := tracer.Start(ctx, "cebroker:Discover")
	defer span.End()

	err := scraper.EnsureInteractable(ctx, page, Overlays...)
	if err != nil {
		return nil, err
	}
	doc, err := page.Document(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to read dashboard")
		return nil, err
	}
	subs, _ := licenseOptions.First(doc.Selection)
	return subs, nil
}

func (a *Adapter) transcriptLink(sub sites.SubRecord) string {
	return a.site.Link(fmt.Sprintf("/licenses/%s/transcript", url.PathEscape(sub.Key)))
}

func (a *Adapter) historyLink(sub sites.SubRecord) string {
	return a.site.Link(fmt.Sprintf("/licenses/%s/history", url.PathEscape(sub.Key)))
}
