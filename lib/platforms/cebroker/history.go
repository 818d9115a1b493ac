package cebroker

import (
	"context"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/htmlutil"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"
	"cetracker/lib/textutil"
)

const (
	historyRows = "table#course-history tbody"
	historyNext = ".pagination .next:not(.disabled) a, .pagination a.next, button.next-page"
	pageSize    = "select#page-size"
	pageSizeGo  = "form#page-size-form button"
)

// PaginateSecondary walks the basic tier's course history.
func (a *Adapter) PaginateSecondary(ctx context.Context, page browser.Page, sub sites.SubRecord) ([]compliance.Course, error) {
	ctx, span := tracer.Start(ctx, "cebroker:PaginateSecondary")
	defer span.End()

	page = scraper.Guard(page, Overlays...)
	if sub.Key != "" {
		err := page.Navigate(ctx, a.historyLink(sub))
		if err != nil {
			return nil, err
		}
	}

	return scraper.Paginate(ctx, scraper.Pager[compliance.Course]{
		Site: SiteID,
		Widen: func(ctx context.Context) error {
			exists, err := browser.Exists(ctx, page, pageSize)
			if err != nil || !exists {
				return err
			}
			err = page.Select(ctx, pageSize, "100")
			if err != nil {
				return err
			}
			exists, err = browser.Exists(ctx, page, pageSizeGo)
			if err != nil || !exists {
				return err
			}
			return page.Click(ctx, pageSizeGo)
		},
		Rows: func(ctx context.Context) ([]compliance.Course, error) {
			doc, err := page.Document(ctx)
			if err != nil {
				return nil, err
			}
			var out []compliance.Course
			for _, cells := range htmlutil.TableRows(doc.Find(historyRows + " tr")) {
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
		Next: func(ctx context.Context) (bool, error) {
			return scraper.ClickNext(ctx, page, historyNext, historyRows)
		},
	}, a.MaxPages)
}
