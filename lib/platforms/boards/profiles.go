package boards

import (
	"cmp"
	"regexp"
	"slices"

	"cetracker/lib/browser"
	"cetracker/lib/scraper"
	"cetracker/lib/sites"
)

// Builtin returns the licensing boards known out of the box, ordered by id.
func Builtin() []Profile {
	profiles := []Profile{
		{
			ID:           "fl-mqa",
			Name:         "Florida Department of Health MQA",
			Jurisdiction: "FL",
			BaseURL:      "https://mqa-internet.doh.state.fl.us",
			Login: sites.LoginForm{
				URL:      "/MQAServices/Account/Login",
				Username: "input#UserName",
				Password: "input#Password",
				Submit:   "input#btnLogin, button[type=submit]",
				Failure:  ".validation-summary-errors",
				Surface:  []string{"/Account/Login"},
			},
			LicensesPath: "/MQAServices/Licensee/MyLicenses",
			LicenseRows:  "table#licenses tbody tr",
			DetailLink:   "a[href*=LicenseDetail]",
			Fields:       DefaultFields(),
		},
		{
			ID:           "oh-elicense",
			Name:         "eLicense Ohio",
			Jurisdiction: "OH",
			BaseURL:      "https://elicense.ohio.gov",
			Login: sites.LoginForm{
				URL:      "/oh_communitieslogin",
				Username: "input[id$=username]",
				Password: "input[id$=password]",
				Submit:   "input[id$=loginButton], button[type=submit]",
				Failure:  ".errorMsg, .message.errorM3",
				Surface:  []string{"login"},
			},
			LicensesPath: "/oh_mylicenses",
			LicenseRows:  ".license-card",
			DetailLink:   "a.view-license",
			Fields: DefaultFields().With(Fields{
				HoursCompleted: scraper.Chain[string]{
					scraper.TextPattern(regexp.MustCompile(`(?i)([\d.]+)\s*hours? of ce (?:on file|attested)`)),
				},
			}),
			CourseRows: "table.ce-attested tbody tr",
			CourseNext: ".ce-pager a.next",
		},
		{
			ID:           "tx-bon",
			Name:         "Texas Board of Nursing",
			Jurisdiction: "TX",
			BaseURL:      "https://txbn.boardgovernance.texas.gov",
			Login: sites.LoginForm{
				URL:      "/login",
				Username: "input[name=email]",
				Password: "input[name=password]",
				Submit:   "button[type=submit]",
				Failure:  ".alert-error, .alert-danger",
				Surface:  []string{"/login"},
			},
			LicensesPath: "/nurse/licenses",
			LicenseRows:  "table.licenses tbody tr",
			Fields: DefaultFields().With(Fields{
				CredentialType:   scraper.Chain[string]{scraper.Selector("td.type")},
				CredentialNumber: scraper.Chain[string]{scraper.Selector("td.number")},
				Status:           scraper.Chain[string]{scraper.Selector("td.status")},
				Expiry:           scraper.Chain[string]{scraper.Selector("td.expires")},
				HoursRequired:    scraper.Chain[string]{scraper.Selector("td.ce-required")},
			}),
			LicenseTypes: []string{
				"Registered Nurse",
				"Licensed Vocational Nurse",
				"APRN - Family Nurse Practitioner",
				"APRN - Adult-Gerontology Primary Care Nurse Practitioner",
				"APRN - Clinical Nurse Specialist",
				"APRN - Certified Registered Nurse Anesthetist",
				"APRN - Certified Nurse Midwife",
			},
		},
		{
			ID:           "ga-sos",
			Name:         "Georgia Secretary of State Professional Licensing",
			Jurisdiction: "GA",
			BaseURL:      "https://gaprofessionallicensing.sos.ga.gov",
			Login: sites.LoginForm{
				URL:      "/Account/SignIn",
				Username: "input#Username",
				Next:     "button#continue",
				Password: "input#Password",
				Submit:   "button#signin",
				Failure:  ".field-validation-error, .alert-danger",
				Surface:  []string{"/Account/SignIn"},
			},
			LicensesPath: "/Licensee/Licenses",
			LicenseRows:  ".license-summary",
			DetailLink:   "a.details",
			Fields:       DefaultFields(),
		},
		{
			ID:           "mi-lara",
			Name:         "Michigan LARA MiPLUS",
			Jurisdiction: "MI",
			BaseURL:      "https://aca-prod.accela.com/MILARA/",
			Engine:       browser.EngineChrome,
			Login: sites.LoginForm{
				URL:      "Login.aspx",
				Username: "input[id$=txtUserId]",
				Next:     "button[id$=btnNext]",
				Password: "input[id$=txtPassword]",
				Submit:   "button[id$=btnLogin]",
				Failure:  "#ctl00_PlaceHolderMain_LoginBox_lblErrorMessage, .ACA_Error_Label",
				Surface:  []string{"Login.aspx"},
			},
			LicensesPath: "Account/AccountManager.aspx",
			LicenseRows:  "table[id$=gdvLicenseList] tr.ACA_TabRow_Odd, table[id$=gdvLicenseList] tr.ACA_TabRow_Even",
			DetailLink:   "a[id$=lnkLicenseNumber]",
			Fields:       DefaultFields(),
			CourseRows:   "table[id$=gdvContinuingEducation] tr.ACA_TabRow_Odd, table[id$=gdvContinuingEducation] tr.ACA_TabRow_Even",
			CourseNext:   "a[id$=lnkNext]",
		},
		{
			ID:           "az-bon",
			Name:         "Arizona State Board of Nursing",
			Jurisdiction: "AZ",
			BaseURL:      "https://www.azbn.gov",
			Login: sites.LoginForm{
				URL:      "/licensee/login",
				Username: "input[name=username]",
				Password: "input[name=password]",
				Submit:   "button[type=submit]",
				Failure:  ".login-error",
				Surface:  []string{"/login"},
			},
			LicensesPath: "/licensee/profile",
			Fields:       DefaultFields(),
		},
	}
	slices.SortFunc(profiles, func(a, b Profile) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return profiles
}

// Lookup finds a built-in profile by id.
func Lookup(id string) (Profile, bool) {
	for _, p := range Builtin() {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}
