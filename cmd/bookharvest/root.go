package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for bookharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookharvest",
		Short: "Polite harvester for paginated book catalogs",
		Long: `bookharvest collects book listings from a paginated catalog site.

It follows the catalog's "next" links one page at a time, honours robots.txt,
keeps a minimum delay between requests and retries transient failures with a
linear back-off. The crawl stops once the requested number of records has been
collected or the catalog runs out of pages.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
