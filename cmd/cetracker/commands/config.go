package commands

import (
	"path/filepath"
	"time"

	"cetracker/lib/configutil"
	"cetracker/lib/diagnostics"
	"cetracker/lib/notify"
	"cetracker/lib/platforms"
	"cetracker/lib/telemetry"
	"cetracker/services/batch"
)

type JitterConfig struct {
	MinMs int `json:"min_ms"`
	MaxMs int `json:"max_ms"`
}

type Config struct {
	Roster  string `json:"roster"`
	EnvFile string `json:"env_file"`

	DiagnosticsDir string `json:"diagnostics_dir"`
	HistoryDB      string `json:"history_db"`
	// DevState holds debugging output such as raw http dumps.
	DevState string `json:"dev_state"`
	// Timezone is the IANA zone renewal deadlines are read in, empty means local.
	Timezone string `json:"timezone"`

	LoginTimeoutSeconds int          `json:"login_timeout_seconds"`
	PageTimeoutSeconds  int          `json:"page_timeout_seconds"`
	Jitter              JitterConfig `json:"jitter"`
	MaxPages            int          `json:"max_pages"`

	Chrome    platforms.ChromeConfig `json:"chrome"`
	HTTP      platforms.HTTPConfig   `json:"http"`
	Platforms []string               `json:"platforms"`
	Boards    []string               `json:"boards"`
	BaseURLs  map[string]string      `json:"base_urls"`

	Smtp      notify.SmtpConfig `json:"smtp"`
	Telemetry telemetry.Config  `json:"telemetry"`
}

func (c Config) loginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSeconds) * time.Second
}

func (c Config) pageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutSeconds) * time.Second
}

func (c Config) jitter() batch.Jitter {
	return batch.Jitter{
		Min: time.Duration(c.Jitter.MinMs) * time.Millisecond,
		Max: time.Duration(c.Jitter.MaxMs) * time.Millisecond,
	}
}

// registry is the source registry config, raw http dumps are only kept in
// verbose runs.
func (c Config) registry(dump bool) platforms.Config {
	cfg := platforms.Config{
		Chrome:    c.Chrome,
		HTTP:      c.HTTP,
		Platforms: c.Platforms,
		Boards:    c.Boards,
		BaseURLs:  c.BaseURLs,
		MaxPages:  c.MaxPages,
	}
	if dump {
		cfg.DumpDir = filepath.Join(c.DevState, "resty")
	}
	return cfg
}

func withDefaults(c Config) Config {
	if c.Roster == "" {
		c.Roster = "roster.json5"
	}
	if c.DiagnosticsDir == "" {
		c.DiagnosticsDir = diagnostics.DefaultDir
	}
	if c.HistoryDB == "" {
		c.HistoryDB = "history.db"
	}
	if c.DevState == "" {
		c.DevState = ".dev"
	}
	if c.LoginTimeoutSeconds <= 0 {
		c.LoginTimeoutSeconds = 45
	}
	if c.PageTimeoutSeconds <= 0 {
		c.PageTimeoutSeconds = 30
	}
	if c.Jitter.MinMs <= 0 && c.Jitter.MaxMs <= 0 {
		c.Jitter = JitterConfig{
			MinMs: int(batch.DefaultJitter.Min.Milliseconds()),
			MaxMs: int(batch.DefaultJitter.Max.Milliseconds()),
		}
	}
	if c.Jitter.MaxMs < c.Jitter.MinMs {
		c.Jitter.MaxMs = c.Jitter.MinMs
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 20
	}
	if c.HTTP.RequestsPerSecond <= 0 {
		c.HTTP.RequestsPerSecond = 2
	}
	return c
}

// loadConfig reads the config and makes every path in it relative to the
// directory the config was found in.
func loadConfig(path string) (Config, error) {
	located, err := configutil.Read[Config](path)
	if err != nil {
		return Config{}, err
	}
	cfg := withDefaults(located.Value)
	cfg.Roster = located.ResolvePath(cfg.Roster)
	cfg.EnvFile = located.ResolvePath(cfg.EnvFile)
	cfg.DiagnosticsDir = located.ResolvePath(cfg.DiagnosticsDir)
	cfg.HistoryDB = located.ResolvePath(cfg.HistoryDB)
	cfg.DevState = located.ResolvePath(cfg.DevState)
	return cfg, nil
}
