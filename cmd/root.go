package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "timeline-scraper",
		Short: "Scrapes the most recent posts from public social timelines.",
		Long: `timeline-scraper renders public profile timelines in a headless browser
and returns their most recent posts as JSON. "serve" runs the HTTP API and
worker pool; "scrape" runs a single isolated scrape and prints the result.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $SCRAPER_CONFIG)")

	cmd.AddCommand(newServeCmd(&cfgFile))
	cmd.AddCommand(newScrapeCmd(&cfgFile))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
