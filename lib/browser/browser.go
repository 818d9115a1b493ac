// Package browser is the interaction surface site adapters drive. A Page is one
// isolated browsing context: its own cookies, its own history, never shared.
//
// Two engines implement it: chrome (a real headless browser via chromedp, for
// single-page portals) and http (a cookie-carrying HTTP client that parses
// server-rendered pages and submits their forms).
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNotFound means no element matched a selector.
	ErrNotFound = errors.New("element not found")
	// ErrDisabled means the matched element cannot be interacted with.
	ErrDisabled = errors.New("element is disabled")
	// ErrClosed means the page has already been released.
	ErrClosed = errors.New("page is closed")
)

type Engine string

const (
	EngineChrome Engine = "chrome"
	EngineHTTP   Engine = "http"
)

// Snapshot is a point-in-time capture of a page for debugging.
type Snapshot struct {
	Data []byte
	// Ext is the file extension matching Data, without the dot.
	Ext string
}

// Page is one isolated, authenticated-or-not browsing context.
//
// Selectors are CSS selectors; comma-separated lists match the first element
// matching any of them, in document order.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Location is the URL of the current document.
	Location(ctx context.Context) (string, error)
	// Document is a parsed copy of the current DOM.
	Document(ctx context.Context) (*goquery.Document, error)
	// WaitVisible blocks until an element matching selector is visible or ctx is done.
	WaitVisible(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Select(ctx context.Context, selector, value string) error
	// Press sends a single named key ("Escape", "Enter") to the page.
	Press(ctx context.Context, key string) error
	// Remove deletes every element matching selector and returns how many there were.
	Remove(ctx context.Context, selector string) (int, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Close() error
}

// Launcher creates fresh, isolated pages.
type Launcher interface {
	Engine() Engine
	Launch(ctx context.Context) (Page, error)
}

// PollInterval is how often WaitFor re-checks its condition.
var PollInterval = 250 * time.Millisecond

// WaitFor polls cond until it reports true, returns an error, or ctx is done.
func WaitFor(ctx context.Context, cond func(ctx context.Context) (bool, error)) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Exists reports whether selector matches anything in the current document.
func Exists(ctx context.Context, page Page, selector string) (bool, error) {
	doc, err := page.Document(ctx)
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// WithTimeout runs fn under a child context bounded by timeout.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func notFound(selector string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, selector)
}
