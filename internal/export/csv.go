package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/nao1215/bookharvest/internal/model"
)

// CSVExporter writes records as CSV with a header row.
type CSVExporter struct {
	path string
}

// NewCSVExporter returns an exporter writing to path.
func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

// Name implements Exporter.
func (e *CSVExporter) Name() string {
	return "csv"
}

// Path returns the destination file.
func (e *CSVExporter) Path() string {
	return e.path
}

// Export implements Exporter. An empty run produces a header-only file.
func (e *CSVExporter) Export(ctx context.Context, run *Run) error {
	return writeFile(e.path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(model.CSVHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		for i, r := range run.Records {
			if i%1000 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			if err := w.Write(r.CSVRow()); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
		w.Flush()
		return w.Error()
	})
}
