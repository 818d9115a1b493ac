package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cetracker/lib/browser"
	"cetracker/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("cetracker.lib.scraper")
var meter = otel.Meter("cetracker.lib.scraper")
var pagesCounter, _ = meter.Int64Counter(
	"cetracker.pipeline.pages",
	metric.WithDescription("listing pages read by the paginator"),
)

// MaxPages is the default runaway bound for Paginate.
const MaxPages = 20

// Pager drives one paged listing.
type Pager[T any] struct {
	// Site labels the pages metric.
	Site string
	// Widen tries to raise the page size before the first read, optional.
	Widen func(ctx context.Context) error
	// Rows reads the rows of the current page.
	Rows func(ctx context.Context) ([]T, error)
	// Next moves to the following page, reporting false when there is none.
	Next func(ctx context.Context) (bool, error)
}

// Paginate reads every page of a listing, stopping when Next reports there are
// no more pages or after maxPages pages (MaxPages when maxPages <= 0).
func Paginate[T any](ctx context.Context, pager Pager[T], maxPages int) ([]T, error) {
	ctx, span := tracer.Start(ctx, "scraper:Paginate")
	defer span.End()

	if maxPages <= 0 {
		maxPages = MaxPages
	}

	if pager.Widen != nil {
		err := pager.Widen(ctx)
		if err != nil {
			slog.DebugContext(ctx, "could not widen page size", "site", pager.Site, "err", err)
		}
	}

	var out []T
	pages := 0
	defer func() {
		span.SetAttributes(attribute.Int("pages", pages))
		pagesCounter.Add(ctx, int64(pages), metric.WithAttributes(attribute.String("site", pager.Site)))
	}()

	for pages < maxPages {
		rows, err := pager.Rows(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}
		pages++
		out = append(out, rows...)

		if pages == maxPages {
			slog.WarnContext(ctx, "pagination stopped at page limit", "site", pager.Site, "page", pages)
			break
		}
		if pager.Next == nil {
			break
		}
		advanced, err := pager.Next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}
		if !advanced {
			break
		}
	}
	return out, nil
}

// IsDisabled reports whether a pagination control renders as disabled, by
// attribute, aria state, class, or a disabled list-item wrapper.
func IsDisabled(sel *goquery.Selection) bool {
	if sel.Length() == 0 {
		return true
	}
	if _, ok := sel.Attr("disabled"); ok {
		return true
	}
	if sel.AttrOr("aria-disabled", "") == "true" {
		return true
	}
	if sel.HasClass("disabled") {
		return true
	}
	return sel.Parent().Is("li.disabled")
}

// AdvanceTimeout bounds how long ClickNext waits for the listing to change.
var AdvanceTimeout = 10 * time.Second

// ClickNext clicks the first control matching next unless it is missing or
// disabled, then waits for the text of the rows selection to change. A listing
// that never changes counts as the last page.
func ClickNext(ctx context.Context, page browser.Page, next, rows string) (bool, error) {
	doc, err := page.Document(ctx)
	if err != nil {
		return false, err
	}
	control := doc.Find(next).First()
	if IsDisabled(control) {
		return false, nil
	}
	before := htmlutil.Text(doc.Find(rows))

	err = page.Click(ctx, next)
	if errors.Is(err, browser.ErrDisabled) || errors.Is(err, browser.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = browser.WithTimeout(ctx, AdvanceTimeout, func(ctx context.Context) error {
		return browser.WaitFor(ctx, func(ctx context.Context) (bool, error) {
			doc, err := page.Document(ctx)
			if err != nil {
				return false, err
			}
			return htmlutil.Text(doc.Find(rows)) != before, nil
		})
	})
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		slog.WarnContext(ctx, "listing did not change after next, treating as last page")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
