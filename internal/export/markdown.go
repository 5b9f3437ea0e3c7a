package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/bookharvest/internal/model"
)

// DefaultMarkdownRows caps the records table of the Markdown summary.
const DefaultMarkdownRows = 50

// MarkdownExporter writes a human-readable run summary: run facts, a rating
// chart, the page log and the first records.
type MarkdownExporter struct {
	path    string
	maxRows int
	version string
}

// MarkdownOption configures a MarkdownExporter.
type MarkdownOption func(*MarkdownExporter)

// WithMaxRows caps the number of records listed. Zero lists every record.
func WithMaxRows(n int) MarkdownOption {
	return func(e *MarkdownExporter) {
		e.maxRows = n
	}
}

// WithVersion sets the version printed in the footer.
func WithVersion(v string) MarkdownOption {
	return func(e *MarkdownExporter) {
		e.version = v
	}
}

// NewMarkdownExporter returns an exporter writing to path.
func NewMarkdownExporter(path string, opts ...MarkdownOption) *MarkdownExporter {
	e := &MarkdownExporter{path: path, maxRows: DefaultMarkdownRows}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Exporter.
func (e *MarkdownExporter) Name() string {
	return "markdown"
}

// Path returns the destination file.
func (e *MarkdownExporter) Path() string {
	return e.path
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFile(e.path, func(f *os.File) error {
		return e.write(f, run)
	})
}

// write renders the summary to w.
func (e *MarkdownExporter) write(w io.Writer, run *Run) error {
	md := markdown.NewMarkdown(w)

	e.writeHeader(md, run)
	e.writeStatus(md, run.Summary)
	e.writeRatings(md, run.Records)
	e.writePages(md, run.Pages)
	e.writeRecords(md, run.Records)
	e.writeFooter(md)

	return md.Build()
}

// writeHeader writes the run facts table.
func (e *MarkdownExporter) writeHeader(md *markdown.Markdown, run *Run) {
	s := run.Summary
	md.H1("Catalog Harvest Report")
	md.PlainText("")

	rows := [][]string{
		{"Start URL", "`" + run.StartURL + "`"},
		{"Records", strconv.Itoa(len(run.Records))},
		{"Pages Visited", strconv.Itoa(s.PagesVisited)},
		{"Skipped Listings", strconv.Itoa(s.SkippedRecords)},
		{"Termination", s.Reason.String()},
	}
	if !s.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if d := s.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(100 * time.Millisecond).String()})
	}
	if s.LastURL != "" {
		rows = append(rows, []string{"Last URL", "`" + s.LastURL + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeStatus writes an alert describing how the crawl ended.
func (e *MarkdownExporter) writeStatus(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.Reason.Complete():
		md.Tip(fmt.Sprintf("Crawl completed (%s) with %d record(s).", s.Reason, s.Records))
	case s.Partial():
		md.Warningf("Partial result: the crawl stopped early (%s) after %d record(s). %s", s.Reason, s.Records, s.Error)
	default:
		md.Cautionf("No records were collected: the crawl stopped (%s). %s", s.Reason, s.Error)
	}
	md.PlainText("")
}

// writeRatings writes the rating distribution as a table and pie chart.
func (e *MarkdownExporter) writeRatings(md *markdown.Markdown, records []model.Record) {
	if len(records) == 0 {
		return
	}

	counts := make(map[model.Rating]int)
	inStock := 0
	for _, r := range records {
		counts[r.Rating]++
		if r.Available() {
			inStock++
		}
	}

	md.H2("Ratings")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Rating Distribution"),
		piechart.WithShowData(true),
	)
	rows := make([][]string, 0, 5)
	for r := model.RatingOne; r <= model.RatingFive; r++ {
		rows = append(rows, []string{r.String(), strconv.Itoa(counts[r])})
		if counts[r] > 0 {
			chart.LabelAndIntValue(r.String(), uint64(counts[r]))
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rating", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
	md.PlainTextf("%d of %d listing(s) in stock.", inStock, len(records))
	md.PlainText("")
}

// writePages writes the page log.
func (e *MarkdownExporter) writePages(md *markdown.Markdown, pages []model.PageVisit) {
	if len(pages) == 0 {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, len(pages))
	for i, p := range pages {
		rows[i] = []string{
			strconv.Itoa(p.Number),
			p.URL,
			strconv.Itoa(p.StatusCode),
			strconv.Itoa(p.Attempts),
			strconv.Itoa(p.Records),
			truncateString(p.ContentHash, 12),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "URL", "Status", "Attempts", "Records", "Hash"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeRecords writes the first maxRows records.
func (e *MarkdownExporter) writeRecords(md *markdown.Markdown, records []model.Record) {
	md.H2("Records")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No records.")
		md.PlainText("")
		return
	}

	shown := records
	if e.maxRows > 0 && len(shown) > e.maxRows {
		shown = shown[:e.maxRows]
	}

	rows := make([][]string, len(shown))
	for i, r := range shown {
		rows[i] = []string{
			truncateString(r.Title, 60),
			r.Price,
			r.Rating.String(),
			r.Availability,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Title", "Price", "Rating", "Availability"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(shown) < len(records) {
		md.Note(fmt.Sprintf("Showing %d of %d records. See the CSV or JSON export for the full list.", len(shown), len(records)))
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (e *MarkdownExporter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	if e.version != "" {
		md.PlainTextf("*Report generated by [bookharvest %s](https://github.com/nao1215/bookharvest)*", e.version)
		return
	}
	md.PlainText("*Report generated by [bookharvest](https://github.com/nao1215/bookharvest)*")
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
