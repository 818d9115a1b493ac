package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/diagnostics"
	"cetracker/lib/scraper"
	"cetracker/lib/session"
	"cetracker/lib/sites"
	"cetracker/lib/telemetry"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will skip setting up a db
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	cleanup := telemetry.SetupForTesting(fmt.Sprintf("test:%s", params.Name))

	dbpath := ":memory:"
	if params.DbPath != "" && params.DbPath != ":memory:" {
		dbpath = filepath.Join(t.TempDir(), params.DbPath)
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	// every pooled connection to :memory: is its own database
	sqlite.SetMaxOpenConns(1)
	if params.DbSchema != "" {
		_, err = sqlite.Exec(params.DbSchema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatal(err)
		}
	}

	return ServiceResult{
		DB: sqlite,
	}, func() {
		sqlite.Close()
		cleanup()
	}
}

// Fixture serves testdata/<name> as html.
func Fixture(t testing.TB, name string) http.HandlerFunc {
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write(contents)
	}
}

// RequireCookie redirects to loginPath unless the request carries the cookie.
func RequireCookie(name, value, loginPath string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(name)
		if err != nil || cookie.Value != value {
			http.Redirect(w, r, loginPath, http.StatusFound)
			return
		}
		next(w, r)
	}
}

// NewPortal serves routes (net/http patterns) until the test ends.
func NewPortal(t testing.TB, routes map[string]http.HandlerFunc) *httptest.Server {
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// RunAdapter logs in with cred through the http engine and runs the
// extraction pipeline, the way a batch unit of work does.
func RunAdapter(t testing.TB, adapter sites.Adapter, provider compliance.Provider, cred compliance.Credential) ([]compliance.Record, error) {
	scraper.DismissWait = 20 * time.Millisecond
	scraper.AdvanceTimeout = 2 * time.Second

	sink := diagnostics.NewSink(t.TempDir())
	manager := session.Manager{Sink: sink, LoginTimeout: 5 * time.Second}
	pipeline := sites.Pipeline{Sink: sink, PageTimeout: 5 * time.Second}

	var records []compliance.Record
	err := manager.Do(
		context.Background(),
		browser.HTTPLauncher{RequestsPerSecond: 1000},
		adapter,
		cred,
		provider.Name,
		func(ctx context.Context, s *session.Session) error {
			var err error
			records, err = pipeline.Run(ctx, s.Page, adapter, provider)
			return err
		},
	)
	return records, err
}
