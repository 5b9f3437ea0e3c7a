package export

import (
	"context"
	"sync/atomic"

	"github.com/nao1215/bookharvest/internal/database"
)

// RunStore persists runs. *database.CrawlDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run *database.Run) (int64, error)
}

// DatabaseExporter stores the run in the crawl history database.
type DatabaseExporter struct {
	store RunStore
	runID atomic.Int64
}

// NewDatabaseExporter returns an exporter saving into store.
func NewDatabaseExporter(store RunStore) *DatabaseExporter {
	return &DatabaseExporter{store: store}
}

// Name implements Exporter.
func (e *DatabaseExporter) Name() string {
	return "database"
}

// RunID returns the ID of the last stored run, or zero.
func (e *DatabaseExporter) RunID() int64 {
	return e.runID.Load()
}

// Export implements Exporter.
func (e *DatabaseExporter) Export(ctx context.Context, run *Run) error {
	id, err := e.store.SaveRun(ctx, &database.Run{
		StartURL: run.StartURL,
		Summary:  run.Summary,
		Records:  run.Records,
		Pages:    run.Pages,
	})
	if err != nil {
		return err
	}
	e.runID.Store(id)
	return nil
}
