package browser

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromeLauncher launches a fresh headless Chrome per page, so nothing
// (cookies, storage, cache) survives from one page to the next.
type ChromeLauncher struct {
	Headless  bool
	UserAgent string
	// ExecPath overrides the Chrome binary, empty means search the PATH.
	ExecPath string
}

func (l ChromeLauncher) Engine() Engine {
	return EngineChrome
}

func (l ChromeLauncher) Launch(ctx context.Context) (Page, error) {
	userAgent := l.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1440, 1000),
		chromedp.UserAgent(userAgent),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	// the browser lives as long as the page, not the caller's context
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// starts the browser
	err := chromedp.Run(tabCtx)
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return &chromePage{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}

type chromePage struct {
	ctx    context.Context
	cancel func()

	closeOnce sync.Once
}

// run executes actions on the tab, bounded by the caller's deadline and cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, target string) error {
	return p.run(ctx, chromedp.Navigate(target))
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, chromedp.Location(&location))
	return location, err
}

func (p *chromePage) Document(ctx context.Context) (*goquery.Document, error) {
	var html, location string
	err := p.run(ctx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	if parsed, err := url.Parse(location); err == nil {
		doc.Url = parsed
	}
	return doc, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	var disabled bool
	err := p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(
			`(() => { const el = document.querySelector(%s); return !!el && (el.disabled === true || el.getAttribute("aria-disabled") === "true"); })()`,
			strconv.Quote(selector),
		), &disabled),
	)
	if err != nil {
		return err
	}
	if disabled {
		return fmt.Errorf("%w: %s", ErrDisabled, selector)
	}
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) Select(ctx context.Context, selector, value string) error {
	var dispatched bool
	return p.run(ctx,
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(
			`(() => { const el = document.querySelector(%s); if (!el) return false; el.dispatchEvent(new Event("change", { bubbles: true })); return true; })()`,
			strconv.Quote(selector),
		), &dispatched),
	)
}

var namedKeys = map[string]string{
	"Escape": kb.Escape,
	"Enter":  kb.Enter,
	"Tab":    kb.Tab,
}

func (p *chromePage) Press(ctx context.Context, key string) error {
	code, ok := namedKeys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return p.run(ctx, chromedp.KeyEvent(code))
}

func (p *chromePage) Remove(ctx context.Context, selector string) (int, error) {
	var removed int
	err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(
		`(() => { const els = document.querySelectorAll(%s); els.forEach((el) => el.remove()); return els.length; })()`,
		strconv.Quote(selector),
	), &removed))
	return removed, err
}

func (p *chromePage) Snapshot(ctx context.Context) (Snapshot, error) {
	var buf []byte
	// quality 100 produces a png
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 100))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Data: buf, Ext: "png"}, nil
}

func (p *chromePage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = chromedp.Cancel(p.ctx)
		p.cancel()
	})
	return err
}
