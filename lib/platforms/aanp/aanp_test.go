package aanp

import (
	"html/template"
	"net/http"
	"testing"

	"cetracker/lib/compliance"
	"cetracker/lib/testutil"

	"github.com/stretchr/testify/require"
)

type activity struct {
	Date  string
	Name  string
	Hours string
}

var fnpActivities = [][]activity{
	{
		{"2025-02-11", "Primary Care Pharmacology Update", "12"},
		{"2025-03-02", "Pediatric Asthma Management", "4.5"},
	},
	{
		{"2025-06-19", "Hypertension Guidelines 2025", "6"},
	},
}

func newPortal(t *testing.T) string {
	templates := template.Must(template.ParseFiles("testdata/login.html", "testdata/activities.html"))
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return testutil.RequireCookie("aanpcb", "sam", "/account/login", next)
	}

	server := testutil.NewPortal(t, map[string]http.HandlerFunc{
		"GET /account/login": func(w http.ResponseWriter, r *http.Request) {
			templates.ExecuteTemplate(w, "login.html", map[string]string{})
		},
		"POST /account/login": func(w http.ResponseWriter, r *http.Request) {
			if r.FormValue("Email") != "sam@example.com" || r.FormValue("Password") != "np-cert" {
				templates.ExecuteTemplate(w, "login.html", map[string]string{"Error": "The email or password is incorrect."})
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "aanpcb", Value: "sam", Path: "/"})
			http.Redirect(w, r, r.FormValue("ReturnUrl"), http.StatusFound)
		},
		"GET /certification":        authed(testutil.Fixture(t, "certifications.html")),
		"GET /certification/FNP":    authed(testutil.Fixture(t, "detail_fnp.html")),
		"GET /certification/AGPCNP": authed(testutil.Fixture(t, "detail_agpcnp.html")),
		"GET /certification/FNP/activities": authed(func(w http.ResponseWriter, r *http.Request) {
			page := 0
			if r.URL.Query().Get("page") == "2" {
				page = 1
			}
			next := 0
			if page == 0 {
				next = 2
			}
			templates.ExecuteTemplate(w, "activities.html", map[string]any{
				"Activities": fnpActivities[page],
				"NextPage":   next,
			})
		}),
		"GET /certification/AGPCNP/activities": authed(func(w http.ResponseWriter, r *http.Request) {
			templates.ExecuteTemplate(w, "activities.html", map[string]any{
				"Activities": []activity{},
				"NextPage":   0,
			})
		}),
	})
	return server.URL
}

var provider = compliance.Provider{ID: "sam", Name: "Sam Okafor", Type: "NP"}
var cred = compliance.Credential{ProviderID: "sam", SiteID: SiteID, Username: "sam@example.com", Secret: "np-cert"}

func TestAANPCertifications(t *testing.T) {
	base := newPortal(t)

	records, err := testutil.RunAdapter(t, New(base), provider, cred)
	require.NoError(t, err)
	require.Len(t, records, 2)

	fnp := records[0]
	require.Equal(t, "Family Nurse Practitioner (FNP-C)", fnp.CredentialType)
	require.Equal(t, "F0419283", fnp.CredentialNumber)
	require.Equal(t, "FNP", fnp.ExternalID)
	require.Equal(t, base+"/certification/FNP", fnp.DeepLink)
	require.Equal(t, "Active", fnp.CertificationStatus)
	require.Equal(t, "2027-01-31", fnp.CertificationExpiry)
	require.Equal(t, "2027-01-31", fnp.RenewalDeadline)
	require.Equal(t, 100.0, *fnp.HoursRequired)
	// the earned total reported by the page wins over the activities sum
	require.Equal(t, 62.5, *fnp.HoursCompleted)
	require.Equal(t, 37.5, *fnp.HoursRemaining)
	require.Equal(t, 25.0, *fnp.PharmacologyRequired)
	require.Equal(t, 18.0, *fnp.PharmacologyCompleted)
	require.Len(t, fnp.SubjectAreas, 1)
	require.Equal(t, 7.0, *fnp.SubjectAreas[0].HoursNeeded)
	require.Len(t, fnp.CompletedCourses, 3)
	require.Equal(t, "Hypertension Guidelines 2025", fnp.CompletedCourses[2].Name)

	agpcnp := records[1]
	require.Equal(t, "Adult-Gerontology Primary Care NP (A-GNP-C)", agpcnp.CredentialType)
	require.Equal(t, "A0087731", agpcnp.CredentialNumber)
	require.Equal(t, "Grace Period", agpcnp.CertificationStatus)
	require.Equal(t, "2026-11-30", agpcnp.CertificationExpiry)
	require.Nil(t, agpcnp.HoursRequired)
	require.Nil(t, agpcnp.HoursCompleted)
	require.Nil(t, agpcnp.PharmacologyRequired)
	require.Empty(t, agpcnp.SubjectAreas)
	require.Empty(t, agpcnp.CompletedCourses)
}

func TestAANPRejectedLogin(t *testing.T) {
	base := newPortal(t)

	bad := cred
	bad.Secret = "nope"
	_, err := testutil.RunAdapter(t, New(base), provider, bad)
	require.ErrorContains(t, err, "The email or password is incorrect.")
}
