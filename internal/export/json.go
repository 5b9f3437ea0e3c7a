package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nao1215/bookharvest/internal/model"
)

// JSONExporter writes records as a JSON array.
//
// HTML escaping is disabled so that titles such as "Tom & Jerry" are written
// as-is.
type JSONExporter struct {
	path   string
	indent string
}

// JSONOption configures a JSONExporter.
type JSONOption func(*JSONExporter)

// WithIndent sets the indentation string. An empty string writes compact JSON.
func WithIndent(indent string) JSONOption {
	return func(e *JSONExporter) {
		e.indent = indent
	}
}

// NewJSONExporter returns an exporter writing to path, indented with two
// spaces by default.
func NewJSONExporter(path string, opts ...JSONOption) *JSONExporter {
	e := &JSONExporter{path: path, indent: "  "}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Exporter.
func (e *JSONExporter) Name() string {
	return "json"
}

// Path returns the destination file.
func (e *JSONExporter) Path() string {
	return e.path
}

// Export implements Exporter. An empty run produces "[]".
func (e *JSONExporter) Export(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records := run.Records
	if records == nil {
		records = []model.Record{}
	}

	return writeFile(e.path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		if e.indent != "" {
			enc.SetIndent("", e.indent)
		}
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("failed to encode records: %w", err)
		}
		return nil
	})
}
