package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cetracker/services/batch"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{ boards: ["tx-bon"] }`), 0600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "roster.json5"), cfg.Roster)
	require.Equal(t, filepath.Join(dir, ".dev/diagnostics"), cfg.DiagnosticsDir)
	require.Equal(t, filepath.Join(dir, "history.db"), cfg.HistoryDB)
	require.Equal(t, "", cfg.EnvFile)
	require.Equal(t, 45*time.Second, cfg.loginTimeout())
	require.Equal(t, 30*time.Second, cfg.pageTimeout())
	require.Equal(t, batch.DefaultJitter, cfg.jitter())
	require.Equal(t, 20, cfg.MaxPages)
	require.Equal(t, 2.0, cfg.HTTP.RequestsPerSecond)

	registry := cfg.registry(true)
	require.Equal(t, []string{"tx-bon"}, registry.Boards)
	require.Equal(t, filepath.Join(dir, ".dev", "resty"), registry.DumpDir)
	require.Empty(t, cfg.registry(false).DumpDir)
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		roster: "/etc/cetracker/roster.json5",
		env_file: ".env",
		login_timeout_seconds: 10,
		jitter: { min_ms: 500, max_ms: 100 },
		smtp: { server: "smtp.example.com", port: 587, email_address: "a@example.com", recipients: ["b@example.com"] },
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		max_pages: 5,
		chrome: { headless: true },
	}`), 0600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "/etc/cetracker/roster.json5", cfg.Roster)
	require.Equal(t, filepath.Join(dir, ".env"), cfg.EnvFile)
	require.Equal(t, 10*time.Second, cfg.loginTimeout())
	// an inverted window collapses to its minimum
	require.Equal(t, batch.Jitter{Min: 500 * time.Millisecond, Max: 500 * time.Millisecond}, cfg.jitter())
	require.Equal(t, 5, cfg.MaxPages)
	require.True(t, cfg.Chrome.Headless)
	require.True(t, cfg.Smtp.Enabled())
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
