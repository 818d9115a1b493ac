package commands

import (
	"time"

	"cetracker/lib/runstore"
	"cetracker/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit *int

func init() {
	historyLimit = historyCmd.Flags().Int("limit", 20, "The number of runs to list.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [run id]",
	Short: "Lists past runs, or the results of one run when given its id.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		store, err := runstore.Open(ctx, cfg.HistoryDB)
		if err != nil {
			serviceutil.Fatal("failed to open history", err)
		}
		defer store.Close()

		if len(args) == 1 {
			results, err := store.Results(ctx, args[0])
			if err != nil {
				serviceutil.Fatal("failed to read run results", err)
			}
			t := newTable()
			t.AppendHeader(table.Row{"Category", "Provider", "Site", "Status", "Error"})
			for _, res := range results {
				t.AppendRow(table.Row{res.Category, res.ProviderID, res.SiteID, res.Status, truncate(res.Error, 60)})
			}
			t.Render()
			return
		}

		runs, err := store.Runs(ctx, *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Run", "Started", "Duration", "Providers", "Records", "Succeeded", "Failed"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.ID,
				run.StartedAt.Format(time.DateTime),
				run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
				run.Providers,
				run.Records,
				run.Succeeded,
				run.Failed,
			})
		}
		t.Render()
	},
}
