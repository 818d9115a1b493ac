// Package platforms assembles the fixed set of sources a batch runs against.
package platforms

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"cetracker/lib/browser"
	"cetracker/lib/platforms/aanp"
	"cetracker/lib/platforms/boards"
	"cetracker/lib/platforms/cebroker"
	"cetracker/lib/platforms/ceufast"
	"cetracker/lib/platforms/netce"
	"cetracker/lib/restyutil"
	"cetracker/lib/sites"
)

type ChromeConfig struct {
	Headless  bool   `json:"headless"`
	UserAgent string `json:"user_agent"`
	ExecPath  string `json:"exec_path"`
}

type HTTPConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type Config struct {
	Chrome ChromeConfig `json:"chrome"`
	HTTP   HTTPConfig   `json:"http"`
	// Platforms and Boards filter the enabled site ids, empty enables all.
	Platforms []string `json:"platforms"`
	Boards    []string `json:"boards"`
	// BaseURLs overrides the base url of a site by id.
	BaseURLs map[string]string `json:"base_urls"`
	MaxPages int               `json:"max_pages"`
	// DumpDir receives raw http messages per site when set.
	DumpDir string `json:"-"`
}

// Source is an adapter together with the launcher for its engine.
type Source struct {
	Adapter  sites.Adapter
	Launcher browser.Launcher
}

func (s Source) Site() sites.Site {
	return s.Adapter.Site()
}

type Registry struct {
	Primary   Source
	Platforms []Source
	Boards    []Source
}

// All lists every source in the order a batch visits them.
func (r Registry) All() []Source {
	out := []Source{r.Primary}
	out = append(out, r.Platforms...)
	out = append(out, r.Boards...)
	return out
}

// Known reports whether a site id belongs to any registered source.
func (r Registry) Known(siteID string) bool {
	for _, s := range r.All() {
		if s.Site().ID == siteID {
			return true
		}
	}
	return false
}

// Lookup finds the source of a site id.
func (r Registry) Lookup(siteID string) (Source, bool) {
	for _, s := range r.All() {
		if s.Site().ID == siteID {
			return s, true
		}
	}
	return Source{}, false
}

// SiteIDs lists the ids of every registered source.
func (r Registry) SiteIDs() []string {
	var ids []string
	for _, s := range r.All() {
		ids = append(ids, s.Site().ID)
	}
	return ids
}

// AllIDs lists every built-in site id, enabled or not.
func AllIDs() []string {
	ids := []string{cebroker.SiteID, netce.SiteID, ceufast.SiteID, aanp.SiteID}
	for _, profile := range boards.Builtin() {
		ids = append(ids, profile.ID)
	}
	return ids
}

// Builtin reports whether a site id is one of AllIDs. Credentials for a
// built-in site that the configuration disables are valid and left unused.
func Builtin(siteID string) bool {
	return slices.Contains(AllIDs(), siteID)
}

func enabled(filter []string, id string) bool {
	return len(filter) == 0 || slices.Contains(filter, id)
}

func (c Config) launcher(siteID string, engine browser.Engine) (browser.Launcher, error) {
	switch engine {
	case browser.EngineChrome:
		return browser.ChromeLauncher{
			Headless:  c.Chrome.Headless,
			UserAgent: c.Chrome.UserAgent,
			ExecPath:  c.Chrome.ExecPath,
		}, nil
	case browser.EngineHTTP, "":
		launcher := browser.HTTPLauncher{
			UserAgent:         c.Chrome.UserAgent,
			RequestsPerSecond: c.HTTP.RequestsPerSecond,
		}
		if c.DumpDir != "" {
			output, err := restyutil.NewFilesystemOutput(filepath.Join(c.DumpDir, siteID))
			if err != nil {
				return nil, err
			}
			launcher.Output = output
		}
		return launcher, nil
	default:
		return nil, fmt.Errorf("site %s: unknown engine %q", siteID, engine)
	}
}

func (c Config) source(adapter sites.Adapter) (Source, error) {
	site := adapter.Site()
	launcher, err := c.launcher(site.ID, site.Engine)
	if err != nil {
		return Source{}, err
	}
	return Source{Adapter: adapter, Launcher: launcher}, nil
}

// New builds the registry. Unknown ids in the platform or board filters are
// an error.
func New(cfg Config) (Registry, error) {
	var reg Registry

	primary, err := cebroker.New(cfg.BaseURLs[cebroker.SiteID])
	if err != nil {
		return Registry{}, fmt.Errorf("%s: %w", cebroker.SiteID, err)
	}
	primary.MaxPages = cfg.MaxPages
	reg.Primary, err = cfg.source(primary)
	if err != nil {
		return Registry{}, err
	}

	nc := netce.New(cfg.BaseURLs[netce.SiteID])
	nc.MaxPages = cfg.MaxPages
	cf := ceufast.New(cfg.BaseURLs[ceufast.SiteID])
	np := aanp.New(cfg.BaseURLs[aanp.SiteID])
	np.MaxPages = cfg.MaxPages

	platformAdapters := []sites.Adapter{nc, cf, np}
	for _, adapter := range platformAdapters {
		id := adapter.Site().ID
		if !enabled(cfg.Platforms, id) {
			slog.Debug("platform disabled", "site", id)
			continue
		}
		src, err := cfg.source(adapter)
		if err != nil {
			return Registry{}, err
		}
		reg.Platforms = append(reg.Platforms, src)
	}
	for _, id := range cfg.Platforms {
		if !slices.Contains([]string{netce.SiteID, ceufast.SiteID, aanp.SiteID}, id) {
			return Registry{}, fmt.Errorf("unknown platform %q", id)
		}
	}

	for _, id := range cfg.Boards {
		if _, ok := boards.Lookup(id); !ok {
			return Registry{}, fmt.Errorf("unknown board %q", id)
		}
	}
	for _, profile := range boards.Builtin() {
		if !enabled(cfg.Boards, profile.ID) {
			slog.Debug("board disabled", "site", profile.ID)
			continue
		}
		adapter, err := boards.New(profile, cfg.BaseURLs[profile.ID])
		if err != nil {
			return Registry{}, fmt.Errorf("%s: %w", profile.ID, err)
		}
		adapter.MaxPages = cfg.MaxPages
		src, err := cfg.source(adapter)
		if err != nil {
			return Registry{}, err
		}
		reg.Boards = append(reg.Boards, src)
	}

	return reg, nil
}
