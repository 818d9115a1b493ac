// Package batch runs every (provider, site) unit of work of a roster and
// folds the outcomes into one output.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"cetracker/lib/compliance"
	"cetracker/lib/platforms"
	"cetracker/lib/runstore"
	"cetracker/lib/session"
	"cetracker/lib/sites"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("cetracker.services.batch")
var meter = otel.Meter("cetracker.services.batch")

var unitResults, _ = meter.Int64Counter(
	"cetracker.unit.results",
	metric.WithDescription("finished (provider, site) units of work"),
)
var unitDuration, _ = meter.Int64Histogram(
	"cetracker.unit.duration_ms",
	metric.WithDescription("duration of a (provider, site) unit of work"),
	metric.WithUnit("ms"),
)

// Jitter is the window the delay between two providers is drawn from.
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

var DefaultJitter = Jitter{Min: 4 * time.Second, Max: 11 * time.Second}

// Delay draws a uniformly random duration in [Min, Max].
func (j Jitter) Delay() time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}
	return j.Min + time.Duration(rand.Int64N(int64(j.Max-j.Min)+1))
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type Results struct {
	Primary   []compliance.RunResult `json:"primary"`
	Platforms []compliance.RunResult `json:"platforms"`
	Boards    []compliance.RunResult `json:"boards"`
}

// All lists every result, primary first.
func (r Results) All() []compliance.RunResult {
	var out []compliance.RunResult
	out = append(out, r.Primary...)
	out = append(out, r.Platforms...)
	out = append(out, r.Boards...)
	return out
}

// Categorized tags every result with the category of its site.
func (r Results) Categorized() []runstore.Result {
	var out []runstore.Result
	tag := func(category sites.Category, results []compliance.RunResult) {
		for _, res := range results {
			out = append(out, runstore.Result{Category: category, RunResult: res})
		}
	}
	tag(sites.CategoryPrimary, r.Primary)
	tag(sites.CategoryPlatform, r.Platforms)
	tag(sites.CategoryBoard, r.Boards)
	return out
}

type Output struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Records holds one group per provider in roster order, none is empty.
	Records [][]compliance.Record `json:"records"`
	Results Results               `json:"results"`
}

type Orchestrator struct {
	Sources  platforms.Registry
	Sessions session.Manager
	Pipeline sites.Pipeline
	Jitter   Jitter
	// Sleep waits out the jitter delay, nil means a timer that ends early
	// when ctx is done.
	Sleep func(ctx context.Context, d time.Duration)
	Now   func() time.Time
}

func (o Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Orchestrator) pause(ctx context.Context) {
	d := o.Jitter.Delay()
	slog.DebugContext(ctx, "waiting before next provider", "delay", d)
	if o.Sleep != nil {
		o.Sleep(ctx, d)
		return
	}
	sleep(ctx, d)
}

// unit runs one (provider, site) pair. It never panics and never returns an
// error, every outcome is encoded in the RunResult.
func (o Orchestrator) unit(ctx context.Context, src platforms.Source, provider compliance.Provider) (records []compliance.Record, result compliance.RunResult) {
	site := src.Site()
	ctx, span := tracer.Start(ctx, "batch:unit")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", provider.ID),
		attribute.String("site", site.ID),
	)

	start := time.Now()
	var err error
	defer func() {
		result = compliance.NewRunResult(provider.ID, site.ID, err)
		span.SetAttributes(attribute.String("status", string(result.Status)))
		if result.Status == compliance.StatusLoginError || result.Status == compliance.StatusFailed {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.WarnContext(ctx, "unit of work failed",
				"provider", provider.Name,
				"site", site.ID,
				"status", result.Status,
				"records", len(records),
				"err", err,
			)
		}
		unitResults.Add(ctx, 1, metric.WithAttributes(
			attribute.String("site", site.ID),
			attribute.String("status", string(result.Status)),
		))
		unitDuration.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
			attribute.String("site", site.ID),
		))
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", site.ID, r)
		}
	}()

	cred, ok := provider.CredentialFor(site.ID)
	if !ok {
		err = compliance.ErrConfigurationAbsent
		return nil, result
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("batch interrupted before %s: %w", site.ID, ctx.Err())
		return nil, result
	}
	// a started unit runs to completion even if the batch is interrupted
	err = o.Sessions.Do(context.WithoutCancel(ctx), src.Launcher, src.Adapter, cred, provider.Name, func(ctx context.Context, s *session.Session) error {
		var runErr error
		records, runErr = o.Pipeline.Run(ctx, s.Page, src.Adapter, provider)
		return runErr
	})
	return records, result
}

// Run processes the primary site for every provider, then every platform
// and every board someone holds a credential for. It always returns, one
// result per (provider, attempted site) pair and at least one record per
// provider.
func (o Orchestrator) Run(ctx context.Context, roster compliance.Roster) Output {
	ctx, span := tracer.Start(ctx, "batch:Run")
	defer span.End()
	span.SetAttributes(attribute.Int("providers", len(roster.Providers)))

	out := Output{
		StartedAt: o.now(),
		Records:   make([][]compliance.Record, len(roster.Providers)),
	}

	loop := func(src platforms.Source, placeholderAbsent bool) []compliance.RunResult {
		site := src.Site()
		results := make([]compliance.RunResult, 0, len(roster.Providers))
		for i, provider := range roster.Providers {
			_, hasCredential := provider.CredentialFor(site.ID)
			launched := hasCredential && ctx.Err() == nil
			records, res := o.unit(ctx, src, provider)
			results = append(results, res)

			if len(records) == 0 && (placeholderAbsent || res.Status != compliance.StatusNotConfigured) {
				records = []compliance.Record{compliance.Placeholder(provider, site.ID, o.now())}
			}
			out.Records[i] = append(out.Records[i], records...)

			// a unit that opened no session leaves no traffic to space out
			if launched && i < len(roster.Providers)-1 {
				o.pause(ctx)
			}
		}
		return results
	}

	out.Results.Primary = loop(o.Sources.Primary, true)

	secondary := func(sources []platforms.Source) []compliance.RunResult {
		var results []compliance.RunResult
		for _, src := range sources {
			if !roster.HasSite(src.Site().ID) {
				slog.DebugContext(ctx, "no credentials for site, skipping", "site", src.Site().ID)
				continue
			}
			results = append(results, loop(src, false)...)
		}
		return results
	}
	out.Results.Platforms = secondary(o.Sources.Platforms)
	out.Results.Boards = secondary(o.Sources.Boards)

	out.FinishedAt = o.now()

	counts := map[compliance.Status]int{}
	for _, res := range out.Results.All() {
		counts[res.Status]++
	}
	slog.InfoContext(ctx, "batch finished",
		"providers", len(roster.Providers),
		"success", counts[compliance.StatusSuccess],
		"not_configured", counts[compliance.StatusNotConfigured],
		"login_error", counts[compliance.StatusLoginError],
		"failed", counts[compliance.StatusFailed],
		"seconds", out.FinishedAt.Sub(out.StartedAt).Seconds(),
	)
	return out
}
