package cebroker

import (
	"context"
	"regexp"
	"strings"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"
	"cetracker/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

var (
	credentialTypeChain = scraper.Chain[string]{
		scraper.Selector(".license-header .profession"),
		scraper.Selector("[data-field=profession]"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^(profession|license type)`)),
	}
	jurisdictionChain = scraper.Chain[string]{
		scraper.Selector(".license-header .state"),
		scraper.Attr(".license-header", "data-state"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^(state|jurisdiction)`)),
	}
	licenseNumberChain = scraper.Chain[string]{
		scraper.Selector(".license-header .license-number"),
		scraper.Selector("[data-field=license-number]"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^license\s*(number|no\.?|#)`)),
	}
	deadlineChain = scraper.Chain[string]{
		scraper.Selector(".renewal-deadline"),
		scraper.Selector("[data-field=renewal-date]"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^(renewal (deadline|date)|cycle ends|expiration)`)),
		scraper.TextPattern(regexp.MustCompile(`(?i)renew(?:al)? by\s+([A-Za-z0-9/, -]+\d{4})`)),
	}
	requiredChain = scraper.Chain[string]{
		scraper.Selector(".compliance-summary .required"),
		scraper.Selector(".hours-required"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^(total )?hours required`)),
		scraper.TextPattern(regexp.MustCompile(`(?i)([\d.]+)\s*(?:total )?hours required`)),
	}
	postedChain = scraper.Chain[string]{
		scraper.Selector(".compliance-summary .posted"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^hours posted`)),
	}
	neededChain = scraper.Chain[string]{
		scraper.Selector(".compliance-summary .needed"),
		scraper.LabelValue(regexp.MustCompile(`(?i)^hours needed`)),
	}
)

const summaryBlock = ".compliance-summary"

// summary reads the professional tier's summary block, nil when the account is
// on the basic tier.
func summary(sel *goquery.Selection) *compliance.AuthoritativeSummary {
	block := sel.Find(summaryBlock).First()
	if block.Length() == 0 {
		return nil
	}
	posted := scraper.Hours(postedChain, sel)
	needed := scraper.Hours(neededChain, sel)
	if posted == nil && needed == nil {
		return nil
	}
	return &compliance.AuthoritativeSummary{Completed: posted, Remaining: needed}
}

func subjectAreas(sel *goquery.Selection) []compliance.SubjectArea {
	var out []compliance.SubjectArea
	rows := sel.Find("table.subject-areas tbody tr, .subject-area-row")
	for _, cells := range htmlutil.TableRows(rows) {
		if len(cells) < 2 || cells[0] == "" {
			continue
		}
		area := compliance.SubjectArea{TopicName: cells[0]}
		area.HoursRequired = textutil.ParseHours(cells[1])
		if len(cells) > 2 {
			area.HoursCompleted = textutil.ParseHours(cells[2])
		}
		if len(cells) > 3 {
			area.HoursNeeded = textutil.ParseHours(cells[3])
		}
		if area.HoursNeeded == nil {
			area.HoursNeeded = compliance.RemainingHours(area.HoursRequired, area.HoursCompleted)
		}
		out = append(out, area)
	}
	return out
}

// fromLabel fills in what the selector option text carries, formatted like
// "RN - Florida - RN9281734".
func fromLabel(ex *compliance.Extraction, label string) {
	parts := strings.Split(label, " - ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if ex.CredentialType == "" && len(parts) > 0 {
		ex.CredentialType = parts[0]
	}
	if ex.Jurisdiction == "" && len(parts) > 1 {
		ex.Jurisdiction = parts[1]
	}
	if ex.CredentialNumber == "" && len(parts) > 2 {
		ex.CredentialNumber = parts[2]
	}
}

func (a *Adapter) ExtractOne(ctx context.Context, page browser.Page, sub sites.SubRecord) (compliance.Extraction, error) {
	ctx, span := tracer.Start(ctx, "cebroker:ExtractOne")
	defer span.End()

	page = scraper.Guard(page, Overlays...)
	if sub.Key != "" {
		err := page.Navigate(ctx, a.transcriptLink(sub))
		if err != nil {
			span.SetStatus(codes.Error, "failed to open transcript")
			return compliance.Extraction{}, &compliance.ExtractionError{Field: "transcript " + sub.Key, Cause: err}
		}
	}
	err := scraper.EnsureInteractable(ctx, page, Overlays...)
	if err != nil {
		return compliance.Extraction{}, err
	}
	doc, err := page.Document(ctx)
	if err != nil {
		return compliance.Extraction{}, err
	}
	sel := doc.Selection

	ex := compliance.Extraction{
		CredentialType:   credentialTypeChain.Text(sel),
		Jurisdiction:     jurisdictionChain.Text(sel),
		CredentialNumber: licenseNumberChain.Text(sel),
		ExternalID:       sub.Key,
		RenewalDeadline:  scraper.Date(deadlineChain, sel),
		HoursRequired:    scraper.Hours(requiredChain, sel),
		Summary:          summary(sel),
		SubjectAreas:     subjectAreas(sel),
	}
	fromLabel(&ex, sub.Label)

	if ex.CredentialType == "" && ex.CredentialNumber == "" && ex.HoursRequired == nil {
		span.SetStatus(codes.Error, "no license on page")
		return ex, &compliance.ExtractionError{Field: "license", Cause: browser.ErrNotFound}
	}
	if sub.Key != "" {
		ex.DeepLink = a.transcriptLink(sub)
	} else {
		ex.DeepLink, _ = page.Location(ctx)
	}
	return ex, nil
}
