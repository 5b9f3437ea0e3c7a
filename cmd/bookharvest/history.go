package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/bookharvest/internal/config"
	"github.com/nao1215/bookharvest/internal/database"
	"github.com/nao1215/bookharvest/internal/model"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed when --limit is not given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It reads the runs stored by previous crawls.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the history of stored crawl runs",
		Long: `History lists the crawl runs stored in the local database, newest first.

Each crawl saves its summary, its page log and every collected record unless
--no-db was given. Use --show to print one run in full.

Examples:
  # List the 20 most recent runs
  bookharvest history

  # List every run as JSON
  bookharvest history --limit 0 --json

  # Print the page log and records of run 5
  bookharvest history --show 5

  # Remove run 5 from the history
  bookharvest history --delete 5`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().Int64P("show", "s", 0,
		"Show the run with this ID including its records")
	cmd.Flags().Int64("delete", 0,
		"Delete the run with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", "",
		"Directory of the history database (default: XDG data directory)")

	cmd.MarkFlagsMutuallyExclusive("show", "delete")

	return cmd
}

// historyRun is the JSON view of a stored run.
type historyRun struct {
	ID         int64     `json:"id"`
	StartURL   string    `json:"start_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
	Records    int       `json:"records"`
	Pages      int       `json:"pages"`
	Skipped    int       `json:"skipped"`
	LastURL    string    `json:"last_url,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// historyDetail is the JSON view of --show.
type historyDetail struct {
	Run     historyRun        `json:"run"`
	Pages   []model.PageVisit `json:"pages"`
	Records []model.Record    `json:"records"`
}

func newHistoryRun(m database.RunMetadata) historyRun {
	return historyRun{
		ID:         m.ID,
		StartURL:   m.StartURL,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Reason:     m.Reason.String(),
		Status:     runStatus(m),
		Records:    m.Records,
		Pages:      m.Pages,
		Skipped:    m.Skipped,
		LastURL:    m.LastURL,
		Error:      m.Error,
	}
}

// runStatus classifies a run as complete, partial or empty.
func runStatus(m database.RunMetadata) string {
	switch {
	case m.Reason.Complete():
		return "complete"
	case m.Partial():
		return "partial"
	default:
		return "empty"
	}
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	showID, err := cmd.Flags().GetInt64("show")
	if err != nil {
		return err
	}
	deleteID, err := cmd.Flags().GetInt64("delete")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	out := cmd.OutOrStdout()

	// Reading the history must not create an empty database.
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, fs.ErrNotExist) {
		if showID != 0 || deleteID != 0 {
			return fmt.Errorf("no crawl history found in %s", dbDir)
		}
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'bookharvest crawl' to run a crawl.")
		return nil
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case deleteID != 0:
		return deleteRun(ctx, out, db, deleteID)
	case showID != 0:
		return showRun(ctx, out, db, showID, jsonOutput)
	default:
		return listRuns(ctx, out, db, limit, jsonOutput)
	}
}

// listRuns prints the most recent runs.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if jsonOutput {
		views := make([]historyRun, 0, len(runs))
		for _, r := range runs {
			views = append(views, newHistoryRun(r))
		}
		return writeJSON(out, views)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'bookharvest crawl' to run a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %-9s  %-15s  %7s  %5s\n", "ID", "Date", "Status", "Reason", "Records", "Pages")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, r := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %-9s  %-15s  %7d  %5d\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			runStatus(r),
			r.Reason,
			r.Records,
			r.Pages,
		)
	}

	fmt.Fprintln(out, "\nUse 'bookharvest history --show <id>' to see the records of a run.")
	return nil
}

// showRun prints one run with its page log and records.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, id int64, jsonOutput bool) error {
	meta, err := db.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get run %d: %w", id, err)
	}
	if meta == nil {
		return fmt.Errorf("run with ID %d not found", id)
	}

	pages, err := db.GetRunPages(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get pages of run %d: %w", id, err)
	}
	records, err := db.GetRunRecords(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get records of run %d: %w", id, err)
	}

	if jsonOutput {
		return writeJSON(out, historyDetail{
			Run:     newHistoryRun(*meta),
			Pages:   pages,
			Records: records,
		})
	}

	fmt.Fprintf(out, "Run %d (%s)\n", meta.ID, runStatus(*meta))
	fmt.Fprintf(out, "  Start URL: %s\n", meta.StartURL)
	fmt.Fprintf(out, "  Started:   %s\n", meta.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "  Duration:  %s\n", meta.FinishedAt.Sub(meta.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "  Reason:    %s\n", meta.Reason)
	fmt.Fprintf(out, "  Records:   %d (%d skipped)\n", meta.Records, meta.Skipped)
	if meta.Error != "" {
		fmt.Fprintf(out, "  Error:     %s\n", meta.Error)
	}

	if len(pages) > 0 {
		fmt.Fprintf(out, "\nPages (%d):\n", len(pages))
		for _, p := range pages {
			fmt.Fprintf(out, "  %3d  %3d  %2d attempt(s)  %3d records  %s\n",
				p.Number, p.StatusCode, p.Attempts, p.Records, p.URL)
		}
	}

	if len(records) > 0 {
		fmt.Fprintf(out, "\nRecords (%d):\n", len(records))
		for i, r := range records {
			fmt.Fprintf(out, "  %4d  %-8s  %-5s  %-12s  %s\n",
				i+1, r.Price, r.Rating, r.Availability, r.Title)
		}
	}

	return nil
}

// deleteRun removes one run from the history.
func deleteRun(ctx context.Context, out io.Writer, db *database.CrawlDB, id int64) error {
	deleted, err := db.DeleteRun(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("run with ID %d not found", id)
	}
	fmt.Fprintf(out, "Deleted run %d\n", id)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
