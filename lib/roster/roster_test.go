package roster

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"cetracker/lib/compliance"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("ROSTER_TEST_SECRET", "hunter2")

	dir := t.TempDir()
	path := writeFile(t, dir, "roster.json5", `{
		providers: [
			{
				id: "p1",
				name: "Jane Doe",
				type: "RN",
				credentials: [
					{ site: "cebroker", username: "jane", secret: "${ROSTER_TEST_SECRET}" },
					{ site: "netce", username: "jane@example.com", secret: "plain" },
				],
			},
			// no credentials at all
			{ id: "p2", name: "John Roe", type: "APRN" },
		],
	}`)

	r, err := Load(path)
	require.NoError(t, err)

	expected := compliance.Roster{Providers: []compliance.Provider{
		{
			ID:   "p1",
			Name: "Jane Doe",
			Type: "RN",
			Credentials: []compliance.Credential{
				{ProviderID: "p1", SiteID: "cebroker", Username: "jane", Secret: "hunter2"},
				{ProviderID: "p1", SiteID: "netce", Username: "jane@example.com", Secret: "plain"},
			},
		},
		{ID: "p2", Name: "John Roe", Type: "APRN"},
	}}
	if diff := cmp.Diff(expected, r); diff != "" {
		t.Fatal(diff)
	}
	require.True(t, r.HasSite("netce"))
	require.False(t, r.HasSite("aanp"))
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		message  string
	}{
		{
			name:     "duplicate id",
			contents: `{ providers: [{ id: "p1", name: "A" }, { id: "p1", name: "B" }] }`,
			message:  "duplicate provider id",
		},
		{
			name:     "missing id",
			contents: `{ providers: [{ name: "A" }] }`,
			message:  "has no id",
		},
		{
			name:     "duplicate site",
			contents: `{ providers: [{ id: "p1", credentials: [{ site: "netce", username: "a", secret: "b" }, { site: "netce", username: "c", secret: "d" }] }] }`,
			message:  "more than one credential",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "roster.json5", test.contents)
			_, err := Load(path)
			require.ErrorContains(t, err, test.message)
		})
	}
}

func TestLoadDropsEmptyCredential(t *testing.T) {
	t.Setenv("ROSTER_TEST_SECRET", "hunter2")
	t.Setenv("ROSTER_TEST_UNSET", "")

	path := writeFile(t, t.TempDir(), "roster.json5", `{
		providers: [
			{ id: "a", credentials: [{ site: "cebroker", username: "a", secret: "${ROSTER_TEST_SECRET}" }] },
			{ id: "b", credentials: [
				{ site: "cebroker", username: "b", secret: "${ROSTER_TEST_UNSET}" },
				{ site: "netce", username: "b", secret: "plain" },
			] },
		],
	}`)

	r, err := Load(path)
	require.NoError(t, err)
	require.Len(t, r.Providers, 2)

	_, ok := r.Providers[1].CredentialFor("cebroker")
	require.False(t, ok)
	cred, ok := r.Providers[1].CredentialFor("netce")
	require.True(t, ok)
	require.Equal(t, "plain", cred.Secret)
	_, ok = r.Providers[0].CredentialFor("cebroker")
	require.True(t, ok)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "roster.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "ROSTER_TEST_DOTENV=from-file\n")
	t.Setenv("ROSTER_TEST_DOTENV", "")
	os.Unsetenv("ROSTER_TEST_DOTENV")

	require.NoError(t, LoadEnv(path))
	require.Equal(t, "from-file", os.Getenv("ROSTER_TEST_DOTENV"))

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")))
	require.NoError(t, LoadEnv(""))
}

func TestValidate(t *testing.T) {
	r := compliance.Roster{Providers: []compliance.Provider{
		{ID: "p1", Credentials: []compliance.Credential{{SiteID: "cebroker"}, {SiteID: "oldportal"}}},
		{ID: "p2", Credentials: []compliance.Credential{{SiteID: "canvas"}}},
	}}
	known := func(id string) bool {
		return slices.Contains([]string{"cebroker", "netce"}, id)
	}

	err := Validate(r, known)
	require.ErrorContains(t, err, `"oldportal"`)
	require.ErrorContains(t, err, `"canvas"`)

	require.NoError(t, Validate(compliance.Roster{Providers: r.Providers[:0]}, known))
}
