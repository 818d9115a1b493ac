package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cetracker/lib/compliance"
	"cetracker/lib/diagnostics"
	"cetracker/lib/notify"
	"cetracker/lib/platforms"
	"cetracker/lib/roster"
	"cetracker/lib/runstore"
	"cetracker/lib/session"
	"cetracker/lib/sites"
	"cetracker/lib/telemetry"
	"cetracker/lib/timezone"
	"cetracker/lib/util/serviceutil"
	"cetracker/services/batch"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runOut *string
var runNoMail *bool

func init() {
	runOut = runCmd.Flags().String("out", "", "Write the records and results of the run to this json file.")
	runNoMail = runCmd.Flags().Bool("no-mail", false, "Skip the e-mail summary even when smtp is configured.")
	rootCmd.AddCommand(runCmd)
}

// outputFile is what collaborators read the run from.
type outputFile struct {
	RunID string `json:"run_id,omitempty"`
	batch.Output
}

var runCmd = &cobra.Command{
	Use:   "run [--out <path/to/output.json>]",
	Short: "Collects compliance records for every provider on the roster.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		err = timezone.Load(cfg.Timezone)
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}
		err = roster.LoadEnv(cfg.EnvFile)
		if err != nil {
			serviceutil.Fatal("failed to load env file", err)
		}
		providers, err := roster.Load(cfg.Roster)
		if err != nil {
			serviceutil.Fatal("failed to load roster", err)
		}
		registry, err := platforms.New(cfg.registry(*verbose))
		if err != nil {
			serviceutil.Fatal("failed to set up sites", err)
		}
		err = roster.Validate(providers, platforms.Builtin)
		if err != nil {
			serviceutil.Fatal("invalid roster", err)
		}

		tel, err := setupTelemetry(ctx, cfg)
		if err != nil {
			serviceutil.Fatal("failed to set up telemetry", err)
		}
		defer func() {
			err := tel.Shutdown(context.WithoutCancel(ctx))
			if err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()
		telemetry.InstrumentPerfStats(ctx, 15*time.Second)

		sink := diagnostics.NewSink(cfg.DiagnosticsDir)
		orchestrator := batch.Orchestrator{
			Sources:  registry,
			Sessions: session.Manager{Sink: sink, LoginTimeout: cfg.loginTimeout()},
			Pipeline: sites.Pipeline{Sink: sink, PageTimeout: cfg.pageTimeout(), Now: timezone.Now},
			Jitter:   cfg.jitter(),
			Now:      timezone.Now,
		}

		slog.Info("starting run", "providers", len(providers.Providers), "sites", len(registry.All()))
		out := orchestrator.Run(ctx, providers)

		// the run is recorded even when interrupted
		ctx = context.WithoutCancel(ctx)

		runID := pushHistory(ctx, cfg.HistoryDB, out)
		if *runOut != "" {
			err = writeOutput(*runOut, outputFile{RunID: runID, Output: out})
			if err != nil {
				slog.Error("failed to write output", "path", *runOut, "err", err)
			} else {
				slog.Info("output written", "path", *runOut)
			}
		}

		printResults(out)
		printRecords(out, compliance.DefaultRiskPolicy)

		if cfg.Smtp.Enabled() && !*runNoMail {
			mailer := notify.Mailer{Config: cfg.Smtp}
			err = mailer.Send(ctx, notify.Summary{
				RunID:      runID,
				StartedAt:  out.StartedAt,
				FinishedAt: out.FinishedAt,
				Records:    out.Records,
				Results:    out.Results.All(),
			})
			if err != nil {
				slog.Error("failed to send summary", "err", err)
			}
		}
	},
}

func setupTelemetry(ctx context.Context, cfg Config) (telemetry.Telemetry, error) {
	if cfg.Telemetry.Enabled() {
		return telemetry.Setup(ctx, "cetracker", cfg.Telemetry)
	}
	return telemetry.SetupFromEnv(ctx, "cetracker")
}

func pushHistory(ctx context.Context, path string, out batch.Output) string {
	store, err := runstore.Open(ctx, path)
	if err != nil {
		slog.Error("failed to open history", "path", path, "err", err)
		return ""
	}
	defer store.Close()

	id, err := store.Push(ctx, runstore.PushRequest{
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
		Records:    out.Records,
		Results:    out.Results.Categorized(),
	})
	if err != nil {
		slog.Error("failed to store run", "path", path, "err", err)
		return ""
	}
	slog.Info("run stored", "run", id)
	return id
}

func writeOutput(path string, out outputFile) error {
	serialized, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, serialized, 0600)
}

func printResults(out batch.Output) {
	t := newTable()
	t.AppendHeader(table.Row{"Category", "Provider", "Site", "Status", "Error"})
	for _, res := range out.Results.Categorized() {
		if res.Status == compliance.StatusNotConfigured {
			continue
		}
		t.AppendRow(table.Row{res.Category, res.ProviderID, res.SiteID, res.Status, truncate(res.Error, 60)})
	}
	t.Render()
}

func printRecords(out batch.Output, policy compliance.RiskPolicy) {
	t := newTable()
	t.AppendHeader(table.Row{"Provider", "Site", "License", "Deadline", "Required", "Completed", "Remaining", "Risk"})
	for _, group := range out.Records {
		for _, r := range group {
			t.AppendRow(table.Row{
				r.ProviderName,
				r.SiteID,
				strings.TrimSpace(r.CredentialType + " " + r.CredentialNumber),
				r.RenewalDeadline,
				hours(r.HoursRequired),
				hours(r.HoursCompleted),
				hours(r.HoursRemaining),
				policy(r, out.FinishedAt),
			})
		}
	}
	t.Render()
}

func hours(h *float64) string {
	if h == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *h)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
