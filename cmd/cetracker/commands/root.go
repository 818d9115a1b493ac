package commands

import (
	"context"
	"fmt"
	"os"

	"cetracker/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var configPath *string
var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "cetracker",
	Short: "cetracker collects continuing education compliance records from licensing portals.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file, searched for upward from the cwd when relative.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level and dump raw http messages.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
