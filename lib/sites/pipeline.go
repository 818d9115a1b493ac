package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cetracker/lib/browser"
	"cetracker/lib/compliance"
	"cetracker/lib/diagnostics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cetracker.lib.sites")

const DefaultPageTimeout = 30 * time.Second

// Pipeline extracts every sub-record of an authenticated account.
type Pipeline struct {
	Sink diagnostics.Sink
	// PageTimeout bounds each discovery, extraction and pagination step,
	// 0 means DefaultPageTimeout.
	PageTimeout time.Duration
	Now         func() time.Time
}

func (p Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Pipeline) step(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	timeout := p.PageTimeout
	if timeout == 0 {
		timeout = DefaultPageTimeout
	}
	err := browser.WithTimeout(ctx, timeout, fn)
	return compliance.AsNavigationTimeout(stage, err)
}

func (p Pipeline) extract(ctx context.Context, page browser.Page, adapter Adapter, sub SubRecord) (compliance.Extraction, error) {
	var ex compliance.Extraction
	err := p.step(ctx, "extract", func(ctx context.Context) error {
		var err error
		ex, err = adapter.ExtractOne(ctx, page, sub)
		return err
	})
	if err != nil {
		return ex, err
	}

	// the summary block is authoritative, summing history would only disagree with it
	if ex.Summary != nil || ex.Courses != nil {
		return ex, nil
	}
	err = p.step(ctx, "course history", func(ctx context.Context) error {
		courses, err := adapter.PaginateSecondary(ctx, page, sub)
		ex.Courses = courses
		return err
	})
	return ex, err
}

// Run discovers the account's sub-records and extracts each one.
//
// A sub-record that cannot be read is skipped, its error is kept as an
// ExtractionError. A NavigationTimeout or a cancelled context stops the run,
// returning the records completed so far with it. Every failure is
// snapshotted to the diagnostics sink.
func (p Pipeline) Run(ctx context.Context, page browser.Page, adapter Adapter, provider compliance.Provider) ([]compliance.Record, error) {
	site := adapter.Site()
	ctx, span := tracer.Start(ctx, "pipeline:Run")
	defer span.End()
	span.SetAttributes(attribute.String("site", site.ID))

	fail := func(stage string, err error) error {
		p.Sink.Record(ctx, page, provider.Name, site.ID+"_"+stage, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var subs []SubRecord
	err := p.step(ctx, "discover", func(ctx context.Context) error {
		var err error
		subs, err = adapter.Discover(ctx, page)
		return err
	})
	if err != nil {
		return nil, fail("discover", fmt.Errorf("discover: %w", err))
	}
	if len(subs) == 0 {
		subs = []SubRecord{{}}
	}
	span.SetAttributes(attribute.Int("sub_records", len(subs)))

	var records []compliance.Record
	var skipped []error
	for _, sub := range subs {
		ex, err := p.extract(ctx, page, adapter, sub)
		if err != nil {
			stage := fmt.Sprintf("extract_%d", sub.Index)
			if stopsRun(ctx, err) {
				return records, fail(stage, err)
			}
			var extractErr *compliance.ExtractionError
			if !errors.As(err, &extractErr) {
				err = &compliance.ExtractionError{Field: sub.describe(), Cause: err}
			}
			slog.WarnContext(ctx, "skipping sub-record",
				"provider", provider.Name,
				"site", site.ID,
				"sub_record", sub.Label,
				"err", err,
			)
			p.Sink.Record(ctx, page, provider.Name, site.ID+"_"+stage, err)
			skipped = append(skipped, err)
			continue
		}
		if ex.ExternalID == "" {
			ex.ExternalID = sub.Key
		}
		records = append(records, compliance.Normalize(provider, site.ID, ex, p.now()))
	}

	if len(records) == 0 && len(skipped) > 0 {
		err := errors.Join(skipped...)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return records, nil
}

// stopsRun reports whether err leaves the session unusable for the remaining
// sub-records.
func stopsRun(ctx context.Context, err error) bool {
	var timeout *compliance.NavigationTimeout
	if errors.As(err, &timeout) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return ctx.Err() != nil
}
