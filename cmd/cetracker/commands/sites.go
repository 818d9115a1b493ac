package commands

import (
	"errors"
	"io/fs"

	"cetracker/lib/platforms"
	"cetracker/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sitesCmd)
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Prints every registered site with its category and engine.",
	Run: func(cmd *cobra.Command, args []string) {
		var registryConfig platforms.Config
		cfg, err := loadConfig(*configPath)
		if err == nil {
			registryConfig = cfg.registry(false)
		} else if !errors.Is(err, fs.ErrNotExist) {
			serviceutil.Fatal("failed to read config", err)
		}

		registry, err := platforms.New(registryConfig)
		if err != nil {
			serviceutil.Fatal("failed to set up sites", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "Category", "Engine", "Base URL"})
		for _, src := range registry.All() {
			site := src.Site()
			t.AppendRow(table.Row{site.ID, site.Name, site.Category, site.Engine, site.BaseURL})
		}
		t.Render()
	},
}
