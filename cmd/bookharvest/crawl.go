package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/bookharvest/internal/catalog"
	"github.com/nao1215/bookharvest/internal/config"
	"github.com/nao1215/bookharvest/internal/crawler"
	"github.com/nao1215/bookharvest/internal/database"
	"github.com/nao1215/bookharvest/internal/export"
	"github.com/nao1215/bookharvest/internal/fetcher"
	"github.com/nao1215/bookharvest/internal/log"
	"github.com/nao1215/bookharvest/internal/policy"
	"github.com/nao1215/bookharvest/internal/ratelimit"
	"github.com/spf13/cobra"
)

// ErrNoRecords is returned when a crawl stopped early without collecting a
// single record.
var ErrNoRecords = errors.New("no records collected")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Harvest book records from a paginated catalog",
		Long: `Crawl walks the catalog from the start URL, following each page's "next"
link, and exports the collected records.

The crawl stops when one of the following happens:
- the number of collected records reaches --min-records
- the catalog has no further page
- a page cannot be fetched after --retries attempts, or is refused
- robots.txt disallows the next page

Records collected before an early stop are still exported.

Examples:
  # Harvest 500 records from books.toscrape.com
  bookharvest crawl

  # Harvest 100 records with a half second delay and a Markdown summary
  bookharvest crawl -n 100 -d 500ms -m summary.md

  # Write exports to a directory and skip the history database
  bookharvest crawl -o exports --no-db

Configuration file (.bookharvest) example:
  minRecords: 200
  delay: 1.5
  sites:
    books.toscrape.com:
      cookie: "sessionid=abc123"`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .bookharvest in current or home directory)")

	// Crawl behaviour
	cmd.Flags().StringP("start-url", "u", config.DefaultStartURL,
		"First catalog page")
	cmd.Flags().IntP("min-records", "n", config.DefaultMinRecords,
		"Stop once at least this many records are collected")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch (0 means no limit)")
	cmd.Flags().Bool("ignore-robots", false,
		"Do not consult robots.txt")

	// Politeness and resilience
	cmd.Flags().DurationP("delay", "d", config.DefaultDelay,
		"Minimum time between two requests")
	cmd.Flags().IntP("retries", "r", config.DefaultMaxRetries,
		"Network attempts per page")
	cmd.Flags().DurationP("backoff", "b", config.DefaultBackoff,
		"Back-off unit; attempt n is followed by n times this value")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().StringP("user-agent", "a", config.DefaultUserAgent,
		"User-Agent header and robots.txt agent")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")

	// Output
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory for export files")
	cmd.Flags().String("csv", config.DefaultCSVFile,
		"CSV export file name")
	cmd.Flags().String("json", config.DefaultJSONFile,
		"JSON export file name")
	cmd.Flags().StringP("markdown", "m", "",
		"Write a Markdown run summary to this file")
	cmd.Flags().Bool("no-db", false,
		"Do not store the run in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig layers defaults, the configuration file and explicitly set
// flags, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly named file must exist; the default locations are optional.
	var file *config.File
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.ApplyTo(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	// Site settings follow the final start URL, which a flag may have changed.
	if file != nil && cmd.Flags().Changed("start-url") {
		site := file.GetSiteConfig(cfg.Host())
		cfg.Cookie = site.Cookie
		cfg.Headers = site.Headers
	}

	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"start-url":  &cfg.StartURL,
		"user-agent": &cfg.UserAgent,
		"proxy":      &cfg.ProxyAddress,
		"output-dir": &cfg.OutputDir,
		"csv":        &cfg.CSVFile,
		"json":       &cfg.JSONFile,
		"markdown":   &cfg.MarkdownFile,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	intFlags := map[string]*int{
		"min-records": &cfg.MinRecords,
		"max-pages":   &cfg.MaxPages,
		"retries":     &cfg.MaxRetries,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durationFlags := map[string]*time.Duration{
		"delay":   &cfg.Delay,
		"backoff": &cfg.Backoff,
		"timeout": &cfg.Timeout,
	}
	for name, dst := range durationFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("no-db") {
		noDB, err := flags.GetBool("no-db")
		if err != nil {
			return err
		}
		cfg.SaveToDB = !noDB
	}
	if flags.Changed("ignore-robots") {
		ignore, err := flags.GetBool("ignore-robots")
		if err != nil {
			return err
		}
		cfg.RespectRobots = !ignore
	}

	return nil
}

// runCrawl runs one crawl with cfg, exports the result and reports it on out.
func runCrawl(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	logger.Debug("starting crawl",
		"startUrl", cfg.StartURL,
		"minRecords", cfg.MinRecords,
		"delay", cfg.Delay,
		"maxRetries", cfg.MaxRetries,
		"backoff", cfg.Backoff,
		"respectRobots", cfg.RespectRobots,
		"proxy", cfg.ProxyAddress,
		"headers", cfg.Headers,
		"cookie", cfg.Cookie,
	)

	// Open the history database first so a broken store fails before any
	// request is made.
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	ctrl, err := newController(cfg, out, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Harvesting %s (target: %d records)...\n", cfg.StartURL, cfg.MinRecords)

	state, err := ctrl.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	run := export.NewRun(cfg.StartURL, state)
	exporters := newExporters(cfg, db)

	// Export even when the crawl was interrupted.
	exportErr := export.ExportAll(context.WithoutCancel(ctx), run, exporters...)

	printSummary(out, run, exporters)

	if exportErr != nil {
		return fmt.Errorf("export failed: %w", exportErr)
	}

	summary := run.Summary
	switch {
	case summary.Empty():
		return fmt.Errorf("%w: crawl stopped with %s: %s", ErrNoRecords, summary.Reason, summary.Error)
	case summary.Partial():
		logger.Warn("partial result exported", "reason", summary.Reason.String(), "records", summary.Records)
		fmt.Fprintf(out, "Warning: crawl stopped early (%s); %d records were exported.\n",
			summary.Reason, summary.Records)
	}

	return nil
}

// newController wires the policy checker, rate limiter, fetcher and page
// adapter into a crawl controller.
func newController(cfg *config.Config, out io.Writer, logger *slog.Logger) (*crawler.Controller, error) {
	client, err := fetcher.NewHTTPClient(fetcher.TransportOptions{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	checker := policy.NewChecker(cfg.UserAgent,
		policy.WithHTTPClient(client),
		policy.WithRespect(cfg.RespectRobots),
		policy.WithLogger(logger),
	)
	limiter := ratelimit.New(cfg.Delay)

	f := fetcher.New(cfg.UserAgent,
		fetcher.WithHTTPClient(client),
		fetcher.WithPolicy(checker),
		fetcher.WithLimiter(limiter),
		fetcher.WithLogger(logger),
		fetcher.WithRetryPolicy(fetcher.RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			BackoffUnit: cfg.Backoff,
		}),
		fetcher.WithHeaders(cfg.Headers),
		fetcher.WithCookie(cfg.Cookie),
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
	)

	return crawler.NewController(cfg.StartURL, f, catalog.NewAdapter(catalog.WithLogger(logger)),
		crawler.WithTargetRecords(cfg.MinRecords),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithPolicy(checker),
		crawler.WithDelayRaiser(limiter),
		crawler.WithLogger(logger),
		crawler.WithOnPage(func(p crawler.PageProgress) {
			fmt.Fprintf(out, "  page %3d: +%-3d records (total %d", p.Number, p.Records, p.Total)
			if p.Skipped > 0 {
				fmt.Fprintf(out, ", %d skipped", p.Skipped)
			}
			fmt.Fprintf(out, ") %s\n", p.URL)
		}),
	), nil
}

// newExporters returns the sinks selected by cfg. db may be nil.
func newExporters(cfg *config.Config, db *database.CrawlDB) []export.Exporter {
	exporters := []export.Exporter{
		export.NewCSVExporter(cfg.OutputPath(cfg.CSVFile)),
		export.NewJSONExporter(cfg.OutputPath(cfg.JSONFile)),
	}
	if cfg.MarkdownFile != "" {
		exporters = append(exporters,
			export.NewMarkdownExporter(cfg.OutputPath(cfg.MarkdownFile), export.WithVersion(getVersion())))
	}
	if db != nil {
		exporters = append(exporters, export.NewDatabaseExporter(db))
	}
	return exporters
}

// printSummary writes the outcome of a run and where it was exported.
func printSummary(out io.Writer, run *export.Run, exporters []export.Exporter) {
	s := run.Summary

	fmt.Fprintf(out, "\nCrawl finished: %s\n", s.Reason)
	fmt.Fprintf(out, "  Records:  %d\n", s.Records)
	fmt.Fprintf(out, "  Pages:    %d\n", s.PagesVisited)
	if s.SkippedRecords > 0 {
		fmt.Fprintf(out, "  Skipped:  %d malformed listings\n", s.SkippedRecords)
	}
	fmt.Fprintf(out, "  Duration: %s\n", s.Duration().Round(time.Millisecond))
	if s.Error != "" {
		fmt.Fprintf(out, "  Error:    %s\n", s.Error)
	}

	for _, e := range exporters {
		name := e.Name()
		switch e := e.(type) {
		case interface{ Path() string }:
			fmt.Fprintf(out, "  %-9s %s\n", name+":", e.Path())
		case *export.DatabaseExporter:
			if id := e.RunID(); id != 0 {
				fmt.Fprintf(out, "  Run ID:   %d (see 'bookharvest history --show %d')\n", id, id)
			}
		}
	}
}
