package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestInstrumentClientRedactsSecrets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		w.Write([]byte("<html>welcome</html>"))
	}))
	defer server.Close()

	dir := filepath.Join(t.TempDir(), "resty")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	InstrumentClient(client, output)

	_, err = client.R().
		SetFormData(map[string]string{"username": "dana", "password": "hunter2"}).
		Post(server.URL + "/login")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Regexp(t, `^\d{4}_POST\.txt$`, entries[0].Name())

	contents, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(contents), "username=dana")
	require.Contains(t, string(contents), "welcome")
	require.NotContains(t, string(contents), "hunter2")
	require.NotContains(t, string(contents), "abc123")
}
