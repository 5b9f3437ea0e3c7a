package model

import (
	"strings"
	"time"
)

// PageVisit records one catalog page that was fetched and extracted.
type PageVisit struct {
	// Number is the 1-based position of the page within the run.
	Number int `json:"number"`

	// URL is the page URL as fetched.
	URL string `json:"url"`

	// StatusCode is the HTTP status of the successful response.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type,omitempty"`

	// ContentHash is the hex SHA3-256 of the decoded body.
	// Two visits with the same hash served identical content.
	ContentHash string `json:"content_hash"`

	// Attempts is how many network attempts the page took.
	Attempts int `json:"attempts"`

	// Records is the number of records extracted from the page.
	Records int `json:"records"`

	// Skipped is the number of malformed listings dropped from the page.
	Skipped int `json:"skipped"`

	// FetchedAt is when the response arrived.
	FetchedAt time.Time `json:"fetched_at"`
}

// IsHTML reports whether the page was served as HTML.
// An empty content type is assumed to be HTML.
func (p PageVisit) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	ct := strings.ToLower(p.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Retried reports whether the page needed more than one attempt.
func (p PageVisit) Retried() bool {
	return p.Attempts > 1
}
