package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/diagnostics"
	"cetracker/lib/platforms"
	"cetracker/lib/session"
	"cetracker/lib/sites"
	"cetracker/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	browser.Page
	user   string
	closed int
}

func (p *fakePage) Snapshot(ctx context.Context) (browser.Snapshot, error) {
	return browser.Snapshot{Data: []byte("<html></html>"), Ext: "html"}, nil
}

func (p *fakePage) Close() error {
	p.closed++
	return nil
}

type fakeLauncher struct {
	pages []*fakePage
}

func (l *fakeLauncher) Engine() browser.Engine {
	return browser.EngineHTTP
}

func (l *fakeLauncher) Launch(ctx context.Context) (browser.Page, error) {
	page := &fakePage{}
	l.pages = append(l.pages, page)
	return page, nil
}

// fakeAdapter behaves according to the username it is logged in with.
type fakeAdapter struct {
	site sites.Site
}

func (a fakeAdapter) Site() sites.Site {
	return a.site
}

func (a fakeAdapter) Authenticate(ctx context.Context, page browser.Page, cred compliance.Credential) error {
	switch cred.Username {
	case "timeout":
		<-ctx.Done()
		return ctx.Err()
	case "rejected":
		return errors.New("credentials rejected")
	}
	page.(*fakePage).user = cred.Username
	return nil
}

func (a fakeAdapter) Discover(ctx context.Context, page browser.Page) ([]sites.SubRecord, error) {
	switch page.(*fakePage).user {
	case "two", "partial", "skips":
		return []sites.SubRecord{{Key: "L1", Index: 0}, {Key: "L2", Index: 1}}, nil
	case "broken":
		return nil, errors.New("license list did not render")
	case "panic":
		panic("selector engine crashed")
	}
	return nil, nil
}

func (a fakeAdapter) ExtractOne(ctx context.Context, page browser.Page, sub sites.SubRecord) (compliance.Extraction, error) {
	switch page.(*fakePage).user {
	case "partial":
		if sub.Index == 1 {
			return compliance.Extraction{}, &compliance.NavigationTimeout{Stage: "extract", Cause: errors.New("page went blank")}
		}
	case "skips":
		if sub.Index == 0 {
			return compliance.Extraction{}, errors.New("GET /licenses/L1: 500 Internal Server Error")
		}
	case "empty":
		return compliance.Extraction{}, &compliance.ExtractionError{Field: "license", Cause: errors.New("nothing rendered")}
	}
	return extraction(a.site.ID, sub.Key), nil
}

func (a fakeAdapter) PaginateSecondary(ctx context.Context, page browser.Page, sub sites.SubRecord) ([]compliance.Course, error) {
	return nil, nil
}

func extraction(siteID, key string) compliance.Extraction {
	return compliance.Extraction{
		CredentialNumber: fmt.Sprintf("%s-%s", siteID, key),
		HoursRequired:    compliance.Float(12),
		Summary: &compliance.AuthoritativeSummary{
			Completed: compliance.Float(10),
			Remaining: compliance.Float(2),
		},
	}
}

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	orchestrator Orchestrator
	launchers    []*fakeLauncher
	sleeps       []time.Duration
}

func (h *harness) source(id string, category sites.Category) platforms.Source {
	launcher := &fakeLauncher{}
	h.launchers = append(h.launchers, launcher)
	return platforms.Source{
		Adapter: fakeAdapter{site: sites.Site{
			ID:       id,
			Name:     id,
			Category: category,
			Engine:   browser.EngineHTTP,
			BaseURL:  "https://" + id + ".test",
		}},
		Launcher: launcher,
	}
}

func newHarness(t *testing.T, platformIDs, boardIDs []string) *harness {
	cleanup := telemetry.SetupForTesting("test:services/batch")
	t.Cleanup(cleanup)

	h := &harness{}
	reg := platforms.Registry{Primary: h.source("primary", sites.CategoryPrimary)}
	for _, id := range platformIDs {
		reg.Platforms = append(reg.Platforms, h.source(id, sites.CategoryPlatform))
	}
	for _, id := range boardIDs {
		reg.Boards = append(reg.Boards, h.source(id, sites.CategoryBoard))
	}

	sink := diagnostics.NewSink(t.TempDir())
	now := func() time.Time { return fixedNow }
	h.orchestrator = Orchestrator{
		Sources:  reg,
		Sessions: session.Manager{Sink: sink, LoginTimeout: 50 * time.Millisecond},
		Pipeline: sites.Pipeline{Sink: sink, PageTimeout: time.Second, Now: now},
		Jitter:   Jitter{Min: time.Second, Max: 2 * time.Second},
		Sleep: func(ctx context.Context, d time.Duration) {
			h.sleeps = append(h.sleeps, d)
		},
		Now: now,
	}
	return h
}

func (h *harness) requireAllClosed(t *testing.T) {
	t.Helper()
	for _, l := range h.launchers {
		for _, p := range l.pages {
			require.Equal(t, 1, p.closed)
		}
	}
}

func provider(id string, creds map[string]string) compliance.Provider {
	p := compliance.Provider{ID: id, Name: "Provider " + id, Type: "RN"}
	for site, username := range creds {
		p.Credentials = append(p.Credentials, compliance.Credential{
			ProviderID: id,
			SiteID:     site,
			Username:   username,
			Secret:     "secret",
		})
	}
	return p
}

func record(p compliance.Provider, siteID, key string) compliance.Record {
	ex := extraction(siteID, key)
	ex.ExternalID = key
	return compliance.Normalize(p, siteID, ex, fixedNow)
}

func statuses(results []compliance.RunResult) []compliance.Status {
	out := make([]compliance.Status, len(results))
	for i, res := range results {
		out[i] = res.Status
	}
	return out
}

func TestRunExample(t *testing.T) {
	h := newHarness(t, nil, nil)

	a := provider("A", map[string]string{"primary": "two"})
	b := provider("B", nil)
	c := provider("C", map[string]string{"primary": "timeout"})
	out := h.orchestrator.Run(context.Background(), compliance.Roster{Providers: []compliance.Provider{a, b, c}})

	require.Equal(t, []compliance.Status{
		compliance.StatusSuccess,
		compliance.StatusNotConfigured,
		compliance.StatusLoginError,
	}, statuses(out.Results.Primary))
	require.Empty(t, out.Results.Primary[0].Error)
	require.Empty(t, out.Results.Primary[1].Error)
	require.NotEmpty(t, out.Results.Primary[2].Error)
	require.Empty(t, out.Results.Platforms)
	require.Empty(t, out.Results.Boards)

	expected := [][]compliance.Record{
		{record(a, "primary", "L1"), record(a, "primary", "L2")},
		{compliance.Placeholder(b, "primary", fixedNow)},
		{compliance.Placeholder(c, "primary", fixedNow)},
	}
	if diff := cmp.Diff(expected, out.Records); diff != "" {
		t.Fatal(diff)
	}

	// jitter after A only: B opened no session and C is last
	require.Len(t, h.sleeps, 1)
	for _, d := range h.sleeps {
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 2*time.Second)
	}
	h.requireAllClosed(t)
	require.Len(t, h.launchers[0].pages, 2)
}

func TestRunSecondarySites(t *testing.T) {
	h := newHarness(t, []string{"plat1", "plat2"}, []string{"board1"})

	a := provider("A", map[string]string{"primary": "two", "plat1": "one", "board1": "two"})
	b := provider("B", map[string]string{"plat1": "rejected"})
	c := provider("C", nil)
	providers := []compliance.Provider{a, b, c}
	out := h.orchestrator.Run(context.Background(), compliance.Roster{Providers: providers})

	require.Equal(t, []compliance.Status{
		compliance.StatusSuccess,
		compliance.StatusNotConfigured,
		compliance.StatusNotConfigured,
	}, statuses(out.Results.Primary))
	// plat2 has no credentials anywhere, it is not attempted
	require.Equal(t, []compliance.Status{
		compliance.StatusSuccess,
		compliance.StatusLoginError,
		compliance.StatusNotConfigured,
	}, statuses(out.Results.Platforms))
	for _, res := range out.Results.Platforms {
		require.Equal(t, "plat1", res.SiteID)
	}
	require.Equal(t, []compliance.Status{
		compliance.StatusSuccess,
		compliance.StatusNotConfigured,
		compliance.StatusNotConfigured,
	}, statuses(out.Results.Boards))

	sitesAttempted := 3
	require.Len(t, out.Results.All(), len(providers)*sitesAttempted)

	expected := [][]compliance.Record{
		{
			record(a, "primary", "L1"),
			record(a, "primary", "L2"),
			record(a, "plat1", ""),
			record(a, "board1", "L1"),
			record(a, "board1", "L2"),
		},
		{
			compliance.Placeholder(b, "primary", fixedNow),
			compliance.Placeholder(b, "plat1", fixedNow),
		},
		{compliance.Placeholder(c, "primary", fixedNow)},
	}
	if diff := cmp.Diff(expected, out.Records); diff != "" {
		t.Fatal(diff)
	}

	categorized := out.Results.Categorized()
	require.Len(t, categorized, 9)
	require.Equal(t, sites.CategoryPrimary, categorized[0].Category)
	require.Equal(t, sites.CategoryPlatform, categorized[3].Category)
	require.Equal(t, sites.CategoryBoard, categorized[8].Category)

	// primary after A, plat1 after A and B, board1 after A
	require.Len(t, h.sleeps, 4)
	require.Empty(t, h.launchers[2].pages)
	h.requireAllClosed(t)
}

func TestRunContainsFailures(t *testing.T) {
	h := newHarness(t, nil, nil)

	users := []string{"panic", "partial", "empty", "broken", "skips", "one"}
	var providers []compliance.Provider
	for _, user := range users {
		providers = append(providers, provider(user, map[string]string{"primary": user}))
	}
	out := h.orchestrator.Run(context.Background(), compliance.Roster{Providers: providers})

	require.Equal(t, []compliance.Status{
		compliance.StatusFailed,
		compliance.StatusFailed,
		compliance.StatusFailed,
		compliance.StatusFailed,
		compliance.StatusSuccess,
		compliance.StatusSuccess,
	}, statuses(out.Results.Primary))
	require.Contains(t, out.Results.Primary[0].Error, "panic")
	require.Contains(t, out.Results.Primary[1].Error, "page went blank")
	require.Contains(t, out.Results.Primary[2].Error, "nothing rendered")
	require.Contains(t, out.Results.Primary[3].Error, "did not render")

	expected := [][]compliance.Record{
		{compliance.Placeholder(providers[0], "primary", fixedNow)},
		// completed sub-records survive a later failure
		{record(providers[1], "primary", "L1")},
		{compliance.Placeholder(providers[2], "primary", fixedNow)},
		{compliance.Placeholder(providers[3], "primary", fixedNow)},
		// a page error on one license leaves the other license readable
		{record(providers[4], "primary", "L2")},
		{record(providers[5], "primary", "")},
	}
	if diff := cmp.Diff(expected, out.Records); diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, fixedNow, out.StartedAt)
	h.requireAllClosed(t)
	require.Len(t, h.launchers[0].pages, len(users))
}

func TestRunEmptyRoster(t *testing.T) {
	h := newHarness(t, []string{"plat1"}, nil)
	out := h.orchestrator.Run(context.Background(), compliance.Roster{})
	require.Empty(t, out.Records)
	require.Empty(t, out.Results.All())
	require.Empty(t, h.sleeps)
}

func TestJitterDelay(t *testing.T) {
	j := Jitter{Min: 4 * time.Second, Max: 11 * time.Second}
	for range 200 {
		d := j.Delay()
		require.GreaterOrEqual(t, d, j.Min)
		require.LessOrEqual(t, d, j.Max)
	}
	require.Equal(t, time.Second, Jitter{Min: time.Second, Max: time.Second}.Delay())
	require.Equal(t, time.Second, Jitter{Min: time.Second}.Delay())
}

func TestSleepEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	sleep(ctx, time.Hour)
	require.Less(t, time.Since(start), time.Second)
}

func TestRunInterrupted(t *testing.T) {
	h := newHarness(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := provider("A", map[string]string{"primary": "two"})
	b := provider("B", nil)
	out := h.orchestrator.Run(ctx, compliance.Roster{Providers: []compliance.Provider{a, b}})

	require.Equal(t, []compliance.Status{
		compliance.StatusFailed,
		compliance.StatusNotConfigured,
	}, statuses(out.Results.Primary))
	require.Contains(t, out.Results.Primary[0].Error, "interrupted")
	require.Len(t, out.Records, 2)
	require.True(t, out.Records[0][0].IsPlaceholder())
	require.Empty(t, h.launchers[0].pages)
	require.Empty(t, h.sleeps)
}
