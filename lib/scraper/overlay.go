package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cetracker/lib/browser"
)

// DismissWait bounds how long EnsureInteractable gives an overlay to go away
// after the dismissal key before removing it.
var DismissWait = time.Second

// EnsureInteractable makes sure none of the overlay selectors cover the page.
// It first tries Escape and only then deletes the overlay elements outright.
func EnsureInteractable(ctx context.Context, page browser.Page, overlays ...string) error {
	if len(overlays) == 0 {
		return nil
	}
	selector := strings.Join(overlays, ", ")

	present, err := browser.Exists(ctx, page, selector)
	if err != nil || !present {
		return err
	}

	err = page.Press(ctx, "Escape")
	if err != nil {
		slog.DebugContext(ctx, "overlay dismissal key failed", "err", err)
	}
	err = browser.WithTimeout(ctx, DismissWait, func(ctx context.Context) error {
		return browser.WaitFor(ctx, func(ctx context.Context) (bool, error) {
			present, err := browser.Exists(ctx, page, selector)
			return !present, err
		})
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	removed := 0
	for _, overlay := range overlays {
		n, err := page.Remove(ctx, overlay)
		if err != nil {
			return err
		}
		removed += n
	}
	slog.DebugContext(ctx, "removed persistent overlay", "elements", removed)
	return nil
}

type guardedPage struct {
	browser.Page
	overlays []string
}

// Guard wraps page so that every click, fill and select first runs
// EnsureInteractable with the given overlays.
func Guard(page browser.Page, overlays ...string) browser.Page {
	if len(overlays) == 0 {
		return page
	}
	return guardedPage{Page: page, overlays: overlays}
}

func (p guardedPage) Click(ctx context.Context, selector string) error {
	err := EnsureInteractable(ctx, p.Page, p.overlays...)
	if err != nil {
		return err
	}
	return p.Page.Click(ctx, selector)
}

func (p guardedPage) Fill(ctx context.Context, selector, value string) error {
	err := EnsureInteractable(ctx, p.Page, p.overlays...)
	if err != nil {
		return err
	}
	return p.Page.Fill(ctx, selector, value)
}

func (p guardedPage) Select(ctx context.Context, selector, value string) error {
	err := EnsureInteractable(ctx, p.Page, p.overlays...)
	if err != nil {
		return err
	}
	return p.Page.Select(ctx, selector, value)
}
