package cebroker

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"cetracker/lib/compliance"
	"cetracker/lib/telemetry"
	"cetracker/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

type historyCourse struct {
	Name  string
	Date  string
	Hours string
}

var basicHistory = []historyCourse{
	{"Florida Laws and Rules", "01/15/2025", "2"},
	{"Preventing Medical Errors", "02/01/2025", "2"},
	{"Domestic Violence", "03/10/2025", "2"},
	{"Human Trafficking", "04/02/2025", "2"},
	{"Wound Care Essentials", "05/20/2025", "3.5"},
}

type fakePortal struct {
	*httptest.Server
	widen        bool
	historyPages int
	// failing transcripts answer with a server error
	failing map[string]bool
}

func newFakePortal(t *testing.T, widen bool) *fakePortal {
	templates := template.Must(template.ParseFiles("testdata/password.html", "testdata/history.html"))
	static := func(name string) http.HandlerFunc {
		return testutil.Fixture(t, name)
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return testutil.RequireCookie("cebroker_session", "dana", "/login", next)
	}

	portal := &fakePortal{widen: widen}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", static("login.html"))
	mux.HandleFunc("POST /login/identify", func(w http.ResponseWriter, r *http.Request) {
		templates.ExecuteTemplate(w, "password.html", map[string]string{"Username": r.FormValue("username")})
	})
	mux.HandleFunc("POST /login/password", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "dana" || r.FormValue("password") != "s3cret" {
			templates.ExecuteTemplate(w, "password.html", map[string]string{
				"Username": r.FormValue("username"),
				"Error":    "Invalid username or password.",
			})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "cebroker_session", Value: "dana", Path: "/"})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /dashboard", authed(static("dashboard.html")))
	transcript := func(id, name string) http.HandlerFunc {
		serve := static(name)
		return authed(func(w http.ResponseWriter, r *http.Request) {
			if portal.failing[id] {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			serve(w, r)
		})
	}
	mux.HandleFunc("GET /licenses/1001/transcript", transcript("1001", "transcript_pro.html"))
	mux.HandleFunc("GET /licenses/1002/transcript", transcript("1002", "transcript_basic.html"))
	mux.HandleFunc("GET /licenses/1001/history", authed(func(w http.ResponseWriter, r *http.Request) {
		t.Error("professional tier history should never be paginated")
	}))
	mux.HandleFunc("GET /licenses/1002/history", authed(func(w http.ResponseWriter, r *http.Request) {
		portal.historyPages++
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		if size == 0 {
			size = 2
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		start := min((page-1)*size, len(basicHistory))
		end := min(start+size, len(basicHistory))
		templates.ExecuteTemplate(w, "history.html", map[string]any{
			"Widen":    portal.widen,
			"Size":     size,
			"Courses":  basicHistory[start:end],
			"Last":     end >= len(basicHistory),
			"NextPage": page + 1,
		})
	}))
	portal.Server = httptest.NewServer(mux)
	return portal
}

var provider = compliance.Provider{
	ID:   "dana",
	Name: "Dana Whitfield",
	Type: "APRN",
	Credentials: []compliance.Credential{
		{ProviderID: "dana", SiteID: SiteID, Username: "dana", Secret: "s3cret"},
	},
}

func run(t *testing.T, portal *fakePortal, cred compliance.Credential) ([]compliance.Record, error) {
	adapter, err := New(portal.URL)
	require.NoError(t, err)
	return testutil.RunAdapter(t, adapter, provider, cred)
}

func expectedRecords(base string) []compliance.Record {
	return []compliance.Record{
		{
			ProviderName:     "Dana Whitfield",
			ProviderType:     "APRN",
			SiteID:           SiteID,
			Jurisdiction:     "Florida",
			CredentialType:   "Advanced Practice Registered Nurse",
			CredentialNumber: "APRN11223",
			ExternalID:       "1001",
			DeepLink:         base + "/licenses/1001/transcript",
			RenewalDeadline:  "2027-07-31",
			HoursRequired:    compliance.Float(30),
			HoursCompleted:   compliance.Float(18),
			HoursRemaining:   compliance.Float(14),
			SubjectAreas: []compliance.SubjectArea{
				{TopicName: "Pharmacology", HoursRequired: compliance.Float(10), HoursCompleted: compliance.Float(6), HoursNeeded: compliance.Float(4)},
				{TopicName: "Controlled Substance Prescribing", HoursRequired: compliance.Float(3), HoursCompleted: compliance.Float(3), HoursNeeded: compliance.Float(0)},
			},
			CompletedCourses: []compliance.Course{},
		},
		{
			ProviderName:     "Dana Whitfield",
			ProviderType:     "APRN",
			SiteID:           SiteID,
			Jurisdiction:     "Florida",
			CredentialType:   "Registered Nurse",
			CredentialNumber: "RN9281734",
			ExternalID:       "1002",
			DeepLink:         base + "/licenses/1002/transcript",
			RenewalDeadline:  "2026-08-31",
			HoursRequired:    compliance.Float(24),
			HoursCompleted:   compliance.Float(11.5),
			HoursRemaining:   compliance.Float(12.5),
			SubjectAreas:     []compliance.SubjectArea{},
			CompletedCourses: []compliance.Course{
				{Name: "Florida Laws and Rules", Date: "2025-01-15", Hours: compliance.Float(2)},
				{Name: "Preventing Medical Errors", Date: "2025-02-01", Hours: compliance.Float(2)},
				{Name: "Domestic Violence", Date: "2025-03-10", Hours: compliance.Float(2)},
				{Name: "Human Trafficking", Date: "2025-04-02", Hours: compliance.Float(2)},
				{Name: "Wound Care Essentials", Date: "2025-05-20", Hours: compliance.Float(3.5)},
			},
		},
	}
}

func TestCEBrokerBothTiers(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:cebroker")
	defer cleanup()

	for _, widen := range []bool{true, false} {
		t.Run("widen="+strconv.FormatBool(widen), func(t *testing.T) {
			portal := newFakePortal(t, widen)
			defer portal.Close()

			records, err := run(t, portal, provider.Credentials[0])
			require.NoError(t, err)

			diff := cmp.Diff(
				expectedRecords(portal.URL),
				records,
				cmpopts.IgnoreFields(compliance.Record{}, "LastUpdated"),
			)
			require.Empty(t, diff)

			if widen {
				// the unwidened first page, then everything on one page
				require.Equal(t, 2, portal.historyPages)
			} else {
				require.Equal(t, 3, portal.historyPages)
			}
		})
	}
}

func TestCEBrokerRejectedLogin(t *testing.T) {
	portal := newFakePortal(t, true)
	defer portal.Close()

	cred := provider.Credentials[0]
	cred.Secret = "wrong"
	_, err := run(t, portal, cred)

	var authErr *compliance.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.ErrorContains(t, err, "Invalid username or password.")
	require.Equal(t, compliance.StatusLoginError, compliance.StatusFor(err))
}

func TestCEBrokerBrokenTranscriptSkipsLicense(t *testing.T) {
	portal := newFakePortal(t, true)
	defer portal.Close()
	portal.failing = map[string]bool{"1001": true}

	records, err := run(t, portal, provider.Credentials[0])
	require.NoError(t, err)

	diff := cmp.Diff(
		expectedRecords(portal.URL)[1:],
		records,
		cmpopts.IgnoreFields(compliance.Record{}, "LastUpdated"),
	)
	require.Empty(t, diff)
}
