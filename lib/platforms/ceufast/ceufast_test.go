package ceufast

import (
	"net/http"
	"testing"

	"cetracker/lib/compliance"
	"cetracker/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newPortal(t *testing.T) string {
	server := testutil.NewPortal(t, map[string]http.HandlerFunc{
		"GET /login": testutil.Fixture(t, "login.html"),
		"POST /login": func(w http.ResponseWriter, r *http.Request) {
			if r.FormValue("_token") != "q8Zr1" || r.FormValue("username") != "mreyes" || r.FormValue("password") != "pa55" {
				testutil.Fixture(t, "login_failed.html")(w, r)
				return
			}
			if r.FormValue("remember") != "on" {
				t.Error("checked remember box was not submitted")
			}
			http.SetCookie(w, &http.Cookie{Name: "ceufast_session", Value: "mreyes", Path: "/"})
			http.Redirect(w, r, "/my-account", http.StatusFound)
		},
		"GET /my-account": testutil.RequireCookie("ceufast_session", "mreyes", "/login",
			testutil.Fixture(t, "certificates.html")),
		"GET /my-account/certificates": testutil.RequireCookie("ceufast_session", "mreyes", "/login",
			testutil.Fixture(t, "certificates.html")),
	})
	return server.URL
}

var provider = compliance.Provider{ID: "mreyes", Name: "Maria Reyes", Type: "LPN"}
var cred = compliance.Credential{ProviderID: "mreyes", SiteID: SiteID, Username: "mreyes", Secret: "pa55"}

func TestCEUfastCertificates(t *testing.T) {
	base := newPortal(t)

	records, err := testutil.RunAdapter(t, New(base), provider, cred)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	require.Equal(t, "Licensed Practical Nurse", record.CredentialType)
	require.Equal(t, "Texas", record.Jurisdiction)
	require.Equal(t, 11.5, *record.HoursCompleted)

	expected := []compliance.Course{
		{Name: "Texas Nursing Jurisprudence and Ethics", Date: "2025-03-14", Hours: compliance.Float(2)},
		{Name: "Human Trafficking Prevention (Texas)", Date: "2025-04-01", Hours: compliance.Float(1)},
		{Name: "Geriatric Pharmacology", Date: "2025-05-09", Hours: compliance.Float(8.5)},
	}
	require.Empty(t, cmp.Diff(expected, record.CompletedCourses))
}

func TestCEUfastRejectedLogin(t *testing.T) {
	base := newPortal(t)

	bad := cred
	bad.Secret = "wrong"
	records, err := testutil.RunAdapter(t, New(base), provider, bad)
	require.Nil(t, records)
	require.ErrorContains(t, err, "These credentials do not match our records.")
}
