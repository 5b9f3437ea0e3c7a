// Package export persists the records of a finished crawl.
//
// Every sink implements Exporter. ExportAll runs them side by side; a sink
// that fails never prevents the others from writing, and its failure is
// reported as an *ExportError.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/bookharvest/internal/model"
)

// Run is a finished crawl handed to the exporters.
type Run struct {
	// StartURL is where the crawl began.
	StartURL string

	// Summary describes how the crawl ended.
	Summary model.Summary

	// Records are the accumulated records in discovery order.
	Records []model.Record

	// Pages is the page log of the crawl.
	Pages []model.PageVisit
}

// NewRun builds a Run from a terminated crawl state.
func NewRun(startURL string, state *model.CrawlState) *Run {
	return &Run{
		StartURL: startURL,
		Summary:  state.Summary(),
		Records:  state.Records,
		Pages:    state.Pages,
	}
}

// Exporter writes a run to one destination.
type Exporter interface {
	// Name identifies the sink in logs and errors, for example "csv".
	Name() string

	// Export writes every record of run, in order.
	Export(ctx context.Context, run *Run) error
}

// ExportError is the failure of one sink.
type ExportError struct {
	// Exporter is the Name of the sink that failed.
	Exporter string
	// Err is the cause.
	Err error
}

// Error implements error.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Exporter, e.Err)
}

// Unwrap exposes the cause.
func (e *ExportError) Unwrap() error {
	return e.Err
}

// ExportAll runs every exporter concurrently and waits for all of them.
// The returned error joins one *ExportError per failed sink, in the order
// the exporters were given, and is nil when every sink succeeded.
func ExportAll(ctx context.Context, run *Run, exporters ...Exporter) error {
	// A plain Group has no shared context, so one failing sink never
	// cancels the others.
	var g errgroup.Group
	errs := make([]error, len(exporters))

	for i, exp := range exporters {
		g.Go(func() error {
			if err := exp.Export(ctx, run); err != nil {
				errs[i] = &ExportError{Exporter: exp.Name(), Err: err}
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}

	return errors.Join(errs...)
}

// writeFile writes the output of fn to path through a temporary file in the
// same directory, creating parent directories as needed. The destination is
// replaced only if fn succeeds.
func writeFile(path string, fn func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := fn(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
