package netce

import (
	"html/template"
	"net/http"
	"strconv"
	"testing"

	"cetracker/lib/compliance"
	"cetracker/lib/testutil"

	"github.com/stretchr/testify/require"
)

type transcriptCourse struct {
	Name  string
	Date  string
	Hours string
}

var transcript = []transcriptCourse{
	{"Ohio Nursing Law and Rules", "Jan 12, 2025", "1"},
	{"Opioid Prescribing Guidelines", "Feb 3, 2025", "5"},
	{"Pharmacology Update 2025", "Mar 22, 2025", "10"},
	{"Sepsis Recognition", "Apr 9, 2025", "2"},
	{"Diabetes Management", "Jun 1, 2025", "4"},
	{"Infection Control", "Jul 16, 2025", "2.5"},
	{"Implicit Bias in Healthcare", "Aug 30, 2025", "1"},
}

func newPortal(t *testing.T, offerShowAll bool) (string, *int) {
	templates := template.Must(template.ParseFiles("testdata/login.html", "testdata/transcript.html"))
	pages := 0

	server := testutil.NewPortal(t, map[string]http.HandlerFunc{
		"GET /login": func(w http.ResponseWriter, r *http.Request) {
			templates.ExecuteTemplate(w, "login.html", map[string]string{})
		},
		"POST /login": func(w http.ResponseWriter, r *http.Request) {
			if r.FormValue("__RequestVerificationToken") != "CfDJ8Nx" ||
				r.FormValue("email") != "lee@example.com" ||
				r.FormValue("password") != "hunter2" {
				templates.ExecuteTemplate(w, "login.html", map[string]string{"Error": "Invalid login attempt."})
				return
			}
			http.SetCookie(w, &http.Cookie{Name: ".AspNetCore.Identity", Value: "lee", Path: "/"})
			http.Redirect(w, r, "/account/transcript", http.StatusFound)
		},
		"GET /account/transcript": testutil.RequireCookie(".AspNetCore.Identity", "lee", "/login",
			func(w http.ResponseWriter, r *http.Request) {
				pages++
				size := 3
				if r.URL.Query().Get("all") == "1" {
					size = len(transcript)
				}
				page, _ := strconv.Atoi(r.URL.Query().Get("page"))
				page = max(page, 1)
				start := min((page-1)*size, len(transcript))
				end := min(start+size, len(transcript))
				next := 0
				if end < len(transcript) {
					next = page + 1
				}
				templates.ExecuteTemplate(w, "transcript.html", map[string]any{
					"Offer":    offerShowAll && size != len(transcript),
					"Total":    "25.5",
					"Courses":  transcript[start:end],
					"NextPage": next,
				})
			},
		),
	})
	return server.URL, &pages
}

var provider = compliance.Provider{ID: "lee", Name: "Lee Park", Type: "NP"}
var cred = compliance.Credential{ProviderID: "lee", SiteID: SiteID, Username: "lee@example.com", Secret: "hunter2"}

func TestNetCETranscript(t *testing.T) {
	for _, offer := range []bool{false, true} {
		t.Run("show_all="+strconv.FormatBool(offer), func(t *testing.T) {
			base, pages := newPortal(t, offer)

			records, err := testutil.RunAdapter(t, New(base), provider, cred)
			require.NoError(t, err)
			require.Len(t, records, 1)

			record := records[0]
			require.Equal(t, "Nurse Practitioner", record.CredentialType)
			require.Equal(t, "Ohio", record.Jurisdiction)
			require.Equal(t, "NP.0451277", record.CredentialNumber)
			require.Equal(t, base+"/account/transcript", record.DeepLink)
			require.Equal(t, 25.5, *record.HoursCompleted)
			require.Nil(t, record.HoursRequired)
			require.Nil(t, record.HoursRemaining)

			require.Len(t, record.CompletedCourses, len(transcript))
			require.Equal(t, "Implicit Bias in Healthcare", record.CompletedCourses[6].Name)
			require.Equal(t, "2025-08-30", record.CompletedCourses[6].Date)
			require.Equal(t, 2.5, *record.CompletedCourses[5].Hours)

			if offer {
				// login redirect, extract, show all
				require.Equal(t, 3, *pages)
			} else {
				// login redirect, extract, then pages 2 and 3
				require.Equal(t, 4, *pages)
			}
		})
	}
}

func TestNetCERejectedLogin(t *testing.T) {
	base, _ := newPortal(t, false)

	bad := cred
	bad.Secret = "nope"
	_, err := testutil.RunAdapter(t, New(base), provider, bad)
	require.ErrorContains(t, err, "Invalid login attempt.")
	require.Equal(t, compliance.StatusLoginError, compliance.StatusFor(err))
}
