package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"cetracker/lib/restyutil"
	"cetracker/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// HTTPLauncher launches pages backed by a plain HTTP client. Each page gets its
// own cookie jar. It understands links and HTML forms, nothing scripted.
type HTTPLauncher struct {
	UserAgent string
	// RequestsPerSecond paces requests made by one page, 0 means 2.
	RequestsPerSecond float64
	Timeout           time.Duration
	// Output receives raw request/response dumps when set.
	Output restyutil.InstrumentOutput
}

func (l HTTPLauncher) Engine() Engine {
	return EngineHTTP
}

func (l HTTPLauncher) Launch(ctx context.Context) (Page, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := l.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)

	timeout := l.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	perSecond := l.RequestsPerSecond
	if perSecond == 0 {
		perSecond = 2
	}
	// max burst >= 2 just means that no requests will be dropped
	limiter := rate.NewLimiter(rate.Limit(perSecond), 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, "cetracker.browser.http")
	restyutil.InstrumentClient(client, l.Output)

	return &httpPage{http: client}, nil
}

type httpPage struct {
	http *resty.Client

	mu     sync.Mutex
	url    *url.URL
	doc    *goquery.Document
	body   []byte
	closed bool
}

func (p *httpPage) load(res *resty.Response) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return fmt.Errorf("parse %s: %w", res.Request.URL, err)
	}
	final := res.RawResponse.Request.URL
	doc.Url = final
	p.url = final
	p.doc = doc
	p.body = res.Body()
	if res.IsError() {
		return fmt.Errorf("%s %s: %s", res.Request.Method, final, res.Status())
	}
	return nil
}

func (p *httpPage) resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if p.url == nil {
		return parsed.String(), nil
	}
	return p.url.ResolveReference(parsed).String(), nil
}

func (p *httpPage) ready() error {
	if p.closed {
		return ErrClosed
	}
	if p.doc == nil {
		return fmt.Errorf("no document loaded")
	}
	return nil
}

func (p *httpPage) get(ctx context.Context, ref string) error {
	target, err := p.resolve(ref)
	if err != nil {
		return err
	}
	res, err := p.http.R().SetContext(ctx).Get(target)
	if err != nil {
		return err
	}
	return p.load(res)
}

func (p *httpPage) Navigate(ctx context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.get(ctx, ref)
}

func (p *httpPage) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	if p.url == nil {
		return "", nil
	}
	return p.url.String(), nil
}

func (p *httpPage) Document(ctx context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return nil, err
	}
	clone := goquery.CloneDocument(p.doc)
	clone.Url = p.url
	return clone, nil
}

// WaitVisible has nothing to wait on without scripts, the current document
// either has the element or it never will.
func (p *httpPage) WaitVisible(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return err
	}
	if p.doc.Find(selector).Length() == 0 {
		return notFound(selector)
	}
	return nil
}

func (p *httpPage) find(selector string) (*goquery.Selection, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, notFound(selector)
	}
	return sel, nil
}

func (p *httpPage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(selector)
	if err != nil {
		return err
	}
	if goquery.NodeName(el) == "textarea" {
		el.SetText(value)
		return nil
	}
	el.SetAttr("value", value)
	return nil
}

func (p *httpPage) Select(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(selector)
	if err != nil {
		return err
	}
	options := el.Find("option")
	matched := false
	options.Each(func(_ int, opt *goquery.Selection) {
		optValue, ok := opt.Attr("value")
		if !ok {
			optValue = strings.TrimSpace(opt.Text())
		}
		if optValue == value && !matched {
			opt.SetAttr("selected", "selected")
			matched = true
			return
		}
		opt.RemoveAttr("selected")
	})
	if !matched {
		return fmt.Errorf("%w: option %q in %s", ErrNotFound, value, selector)
	}
	return nil
}

func isDisabled(el *goquery.Selection) bool {
	if _, ok := el.Attr("disabled"); ok {
		return true
	}
	if el.AttrOr("aria-disabled", "") == "true" {
		return true
	}
	return el.HasClass("disabled")
}

func (p *httpPage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(selector)
	if err != nil {
		return err
	}
	if isDisabled(el) {
		return fmt.Errorf("%w: %s", ErrDisabled, selector)
	}

	switch goquery.NodeName(el) {
	case "a":
		href, ok := el.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return fmt.Errorf("%s: anchor has no navigable href", selector)
		}
		return p.get(ctx, href)
	case "button", "input":
		form := el.Closest("form")
		if form.Length() == 0 {
			return fmt.Errorf("%s: control is not inside a form", selector)
		}
		return p.submit(ctx, form, el)
	case "form":
		return p.submit(ctx, el, nil)
	}
	if href, ok := el.Attr("data-href"); ok {
		return p.get(ctx, href)
	}
	return fmt.Errorf("%s: %s is not clickable without scripts", selector, goquery.NodeName(el))
}

// formValues collects what a browser would submit for form when submitter is
// used to submit it.
func formValues(form, submitter *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input, select, textarea").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := field.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(field) {
		case "select":
			selected := field.Find("option[selected]").First()
			if selected.Length() == 0 {
				selected = field.Find("option").First()
			}
			if selected.Length() == 0 {
				return
			}
			values.Add(name, selected.AttrOr("value", strings.TrimSpace(selected.Text())))
		case "textarea":
			values.Add(name, field.Text())
		default:
			kind := strings.ToLower(field.AttrOr("type", "text"))
			switch kind {
			case "checkbox", "radio":
				if _, checked := field.Attr("checked"); checked {
					values.Add(name, field.AttrOr("value", "on"))
				}
			case "submit", "button", "image", "reset":
				if submitter != nil && len(submitter.Nodes) > 0 && field.Nodes[0] == submitter.Nodes[0] {
					values.Add(name, field.AttrOr("value", ""))
				}
			default:
				values.Add(name, field.AttrOr("value", ""))
			}
		}
	})
	if submitter != nil && goquery.NodeName(submitter) == "button" {
		if name, ok := submitter.Attr("name"); ok && name != "" {
			values.Add(name, submitter.AttrOr("value", ""))
		}
	}
	return values
}

func (p *httpPage) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	action := form.AttrOr("action", "")
	method := strings.ToUpper(form.AttrOr("method", "GET"))
	if submitter != nil {
		action = submitter.AttrOr("formaction", action)
		method = strings.ToUpper(submitter.AttrOr("formmethod", method))
	}
	if action == "" && p.url != nil {
		action = p.url.String()
	}
	target, err := p.resolve(action)
	if err != nil {
		return err
	}
	values := formValues(form, submitter)

	req := p.http.R().SetContext(ctx)
	var res *resty.Response
	if method == "POST" {
		res, err = req.SetFormDataFromValues(values).Post(target)
	} else {
		res, err = req.SetQueryParamsFromValues(values).Get(target)
	}
	if err != nil {
		return err
	}
	return p.load(res)
}

// Press is a no-op, there is nothing listening for keys in a static document.
func (p *httpPage) Press(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

func (p *httpPage) Remove(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ready(); err != nil {
		return 0, err
	}
	matched := p.doc.Find(selector)
	n := matched.Length()
	matched.Remove()
	return n, nil
}

func (p *httpPage) Snapshot(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Snapshot{}, ErrClosed
	}
	if p.doc == nil {
		return Snapshot{Data: p.body, Ext: "html"}, nil
	}
	rendered, err := goquery.OuterHtml(p.doc.Selection)
	if err != nil {
		return Snapshot{Data: p.body, Ext: "html"}, nil
	}
	return Snapshot{Data: []byte(rendered), Ext: "html"}, nil
}

func (p *httpPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.http.GetClient().CloseIdleConnections()
	return nil
}
