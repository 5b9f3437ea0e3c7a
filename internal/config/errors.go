package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrInvalidStartURL is returned when the start URL is not an absolute
	// http or https URL.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http(s) URL")

	// ErrInvalidMinRecords is returned when the record target is not positive.
	ErrInvalidMinRecords = errors.New("invalid minimum records: must be positive")

	// ErrInvalidDelay is returned when the request delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxRetries is returned when fewer than one attempt is allowed.
	ErrInvalidMaxRetries = errors.New("invalid retries: must be at least 1")

	// ErrInvalidBackoff is returned when the back-off unit is negative.
	ErrInvalidBackoff = errors.New("invalid backoff: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrEmptyUserAgent is returned when the user agent is blank.
	ErrEmptyUserAgent = errors.New("invalid user agent: must not be empty")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrNoOutputFile is returned when the CSV or JSON file name is empty.
	ErrNoOutputFile = errors.New("invalid output: csv and json file names are required")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrNoDBDir is returned when saving to the database without a directory.
	ErrNoDBDir = errors.New("invalid database directory: must be set when saving runs")
)
