// Package database provides SQLite-based storage of crawl history.
//
// Each finished crawl is stored as a run row together with its records in
// discovery order and its page log (URL, status, content hash, attempts).
// The history command reads runs back to list past crawls or re-print the
// records of one of them.
//
// The database is a single SQLite file (modernc.org/sqlite, no cgo) opened
// in WAL mode with one connection.
package database
