// Package diagnostics captures point-in-time snapshots of a page when a login or
// extraction fails, so the failure can be inspected after an unattended run.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cetracker/lib/browser"
)

const DefaultDir = ".dev/diagnostics"

// CaptureTimeout bounds a single snapshot taken by Record.
var CaptureTimeout = 15 * time.Second

// Sink writes snapshots into Dir, creating it on first use.
type Sink struct {
	Dir string
}

func NewSink(dir string) Sink {
	if dir == "" {
		dir = DefaultDir
	}
	return Sink{Dir: dir}
}

var nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses everything that isn't a letter or digit into
// single underscores.
func Slug(s string) string {
	slug := nonSlugRegex.ReplaceAllString(strings.ToLower(s), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "unknown"
	}
	return slug
}

// FileName is the deterministic name of the snapshot for a provider and a
// failure stage, without extension.
func FileName(providerName, stage string) string {
	return fmt.Sprintf("%s_%s", Slug(providerName), Slug(stage))
}

// Capture snapshots page and writes it to <dir>/<provider>_<stage>.<ext>,
// overwriting an older snapshot for the same pair. It returns the path written.
func (s Sink) Capture(ctx context.Context, page browser.Page, providerName, stage string) (string, error) {
	if page == nil {
		return "", fmt.Errorf("no page to capture")
	}
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	dir := s.Dir
	if dir == "" {
		dir = DefaultDir
	}
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}

	ext := snap.Ext
	if ext == "" {
		ext = "bin"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", FileName(providerName, stage), ext))
	err = os.WriteFile(path, snap.Data, 0644)
	if err != nil {
		return "", err
	}
	return path, nil
}

// Record captures a snapshot and logs where it went. Capture failures are
// logged and swallowed, a missing snapshot never changes the outcome of a unit.
//
// The snapshot is taken even when ctx has already expired, which is the usual
// case after a timeout.
func (s Sink) Record(ctx context.Context, page browser.Page, providerName, stage string, cause error) {
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CaptureTimeout)
	defer cancel()

	path, err := s.Capture(captureCtx, page, providerName, stage)
	if err != nil {
		slog.WarnContext(ctx, "failed to capture diagnostics",
			"provider", providerName,
			"stage", stage,
			"err", err,
		)
		return
	}
	slog.ErrorContext(ctx, "failure snapshot captured",
		"provider", providerName,
		"stage", stage,
		"path", path,
		"err", cause,
	)
}
