package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/bookharvest/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "bookharvest.db"

// CrawlDB stores the history of crawl runs: one row per run plus the
// records and page log of each run.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_url TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT,
		reason TEXT NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		skipped_count INTEGER NOT NULL DEFAULT 0,
		last_url TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_url ON runs(start_url);

	-- Records in discovery order
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		price TEXT,
		rating TEXT,
		availability TEXT,
		detail_url TEXT,
		image_url TEXT,
		UNIQUE(run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);

	-- Page log of each run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		content_hash TEXT,
		attempts INTEGER,
		record_count INTEGER,
		skipped_count INTEGER,
		fetched_at TEXT,
		UNIQUE(run_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages(content_hash);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a finished crawl to be stored.
type Run struct {
	StartURL string
	Summary  model.Summary
	Records  []model.Record
	Pages    []model.PageVisit
}

// RunMetadata is the stored summary row of a run.
type RunMetadata struct {
	ID         int64
	StartURL   string
	StartedAt  time.Time
	FinishedAt time.Time
	Reason     model.TerminationReason
	Records    int
	Pages      int
	Skipped    int
	LastURL    string
	Error      string
	CreatedAt  time.Time
}

// Partial reports whether the run stopped early with some records.
func (m RunMetadata) Partial() bool {
	return !m.Reason.Complete() && m.Records > 0
}

// SaveRun stores a run with its records and page log in one transaction and
// returns the new run ID.
func (cdb *CrawlDB) SaveRun(ctx context.Context, run *Run) (id int64, err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sum := run.Summary
	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (start_url, started_at, finished_at, reason, record_count, page_count, skipped_count, last_url, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartURL, formatTimestamp(sum.StartedAt), formatTimestamp(sum.FinishedAt), sum.Reason.String(),
		len(run.Records), sum.PagesVisited, sum.SkippedRecords, sum.LastURL, sum.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	if err := insertRecords(ctx, tx, id, run.Records); err != nil {
		return 0, err
	}
	if err := insertPages(ctx, tx, id, run.Pages); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, runID int64, records []model.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (run_id, position, title, price, rating, availability, detail_url, image_url)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, runID, i, r.Title, r.Price, r.Rating.String(), r.Availability, r.DetailURL, r.ImageURL); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	return nil
}

func insertPages(ctx context.Context, tx *sql.Tx, runID int64, pages []model.PageVisit) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, number, url, status_code, content_type, content_hash, attempts, record_count, skipped_count, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, runID, p.Number, p.URL, p.StatusCode, p.ContentType, p.ContentHash,
			p.Attempts, p.Records, p.Skipped, formatTimestamp(p.FetchedAt)); err != nil {
			return fmt.Errorf("failed to insert page %d: %w", p.Number, err)
		}
	}
	return nil
}

const runColumns = `id, start_url, started_at, finished_at, reason, record_count, page_count, skipped_count, last_url, error, created_at`

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *meta)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or nil if there is none.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*RunMetadata, error) {
	row := cdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	meta, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// GetRunRecords returns the records of a run in discovery order.
func (cdb *CrawlDB) GetRunRecords(ctx context.Context, runID int64) ([]model.Record, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT title, price, rating, availability, detail_url, image_url
	FROM records WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		var (
			r      model.Record
			rating string
		)
		if err := rows.Scan(&r.Title, &r.Price, &rating, &r.Availability, &r.DetailURL, &r.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := r.Rating.UnmarshalText([]byte(rating)); err != nil {
			return nil, fmt.Errorf("failed to decode rating: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetRunPages returns the page log of a run in visiting order.
func (cdb *CrawlDB) GetRunPages(ctx context.Context, runID int64) ([]model.PageVisit, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT number, url, status_code, content_type, content_hash, attempts, record_count, skipped_count, fetched_at
	FROM pages WHERE run_id = ? ORDER BY number
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.PageVisit, 0)
	for rows.Next() {
		var (
			p         model.PageVisit
			fetchedAt sql.NullString
		)
		if err := rows.Scan(&p.Number, &p.URL, &p.StatusCode, &p.ContentType, &p.ContentHash,
			&p.Attempts, &p.Records, &p.Skipped, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.FetchedAt = parseTimestamp(fetchedAt.String)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeleteRun removes a run with its records and pages.
// It reports whether a run was deleted.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id int64) (bool, error) {
	res, err := cdb.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted runs: %w", err)
	}
	return n > 0, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunMetadata, error) {
	var (
		meta                          RunMetadata
		startedAt, finishedAt, reason string
		lastURL, errMsg, createdAt    sql.NullString
	)
	err := row.Scan(&meta.ID, &meta.StartURL, &startedAt, &finishedAt, &reason,
		&meta.Records, &meta.Pages, &meta.Skipped, &lastURL, &errMsg, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	meta.StartedAt = parseTimestamp(startedAt)
	meta.FinishedAt = parseTimestamp(finishedAt)
	meta.LastURL = lastURL.String
	meta.Error = errMsg.String
	meta.CreatedAt = parseTimestamp(createdAt.String)
	meta.Reason, err = model.ParseTerminationReason(reason)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// formatTimestamp stores times as RFC 3339 in UTC. The zero time is stored
// as an empty string.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
