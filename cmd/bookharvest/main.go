// Package main provides the entry point for the bookharvest CLI.
//
// bookharvest walks a paginated book catalog politely: it honours robots.txt,
// spaces requests out, retries transient failures and stops once enough
// records are collected. Records are exported to CSV and JSON, optionally
// summarised in Markdown and kept in a local SQLite history.
//
// Usage:
//
//	bookharvest crawl
//	bookharvest crawl --min-records 100 --markdown summary.md
//	bookharvest history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
