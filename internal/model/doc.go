// Package model defines the data structures shared by the harvester.
//
// This package contains the following main types:
//   - Record: one extracted catalog listing
//   - Rating: the five level star rating of a listing
//   - CrawlState: the accumulation and bookkeeping of a single crawl run
//   - Summary: the serializable outcome of a run
//
// Models live in their own package so that the crawler, the exporters and
// the database can share them without import cycles.
package model
