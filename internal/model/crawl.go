package model

import (
	"fmt"
	"net/url"
	"time"
)

// TerminationReason explains why a crawl stopped.
type TerminationReason int

const (
	// ReasonNone means the crawl has not terminated yet.
	ReasonNone TerminationReason = iota

	// ReasonTargetReached means the accumulated record count reached the
	// configured minimum.
	ReasonTargetReached

	// ReasonExhausted means the last page had no next reference.
	ReasonExhausted

	// ReasonFetchFailed means a page could not be fetched: retries were
	// exhausted or the server answered with a client error.
	ReasonFetchFailed

	// ReasonPolicyDenied means the robots policy disallowed the next target.
	ReasonPolicyDenied

	// ReasonCycleDetected means the next reference pointed at a page that was
	// already visited.
	ReasonCycleDetected

	// ReasonPageLimit means the configured page cap was hit.
	ReasonPageLimit

	// ReasonCancelled means the context was cancelled between states.
	ReasonCancelled

	// ReasonExtractFailed means a fetched page could not be parsed at all.
	ReasonExtractFailed
)

// String returns the reason in snake case, as stored and printed.
func (r TerminationReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTargetReached:
		return "target_reached"
	case ReasonExhausted:
		return "exhausted"
	case ReasonFetchFailed:
		return "fetch_failed"
	case ReasonPolicyDenied:
		return "policy_denied"
	case ReasonCycleDetected:
		return "cycle_detected"
	case ReasonPageLimit:
		return "page_limit"
	case ReasonCancelled:
		return "cancelled"
	case ReasonExtractFailed:
		return "extract_failed"
	default:
		return "unknown"
	}
}

// Complete reports whether the reason is a normal end of crawl rather than a
// page-level failure.
func (r TerminationReason) Complete() bool {
	return r == ReasonTargetReached || r == ReasonExhausted || r == ReasonPageLimit
}

// MarshalText encodes the reason as its String form.
func (r TerminationReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseTerminationReason is the inverse of TerminationReason.String.
func ParseTerminationReason(s string) (TerminationReason, error) {
	for r := ReasonNone; r <= ReasonExtractFailed; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown termination reason %q", s)
}

// UnmarshalText decodes the String form of a reason.
func (r *TerminationReason) UnmarshalText(text []byte) error {
	parsed, err := ParseTerminationReason(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// CrawlState is the mutable state of a single crawl run.
// It is owned by exactly one controller and is only touched from its loop.
type CrawlState struct {
	// Records holds accepted records in discovery order. Duplicates are kept.
	Records []Record

	// Current is the page the controller is about to fetch, or the last
	// page it fetched once terminated.
	Current *url.URL

	// PagesVisited counts pages that were fetched and extracted.
	PagesVisited int

	// SkippedRecords counts malformed listings dropped by the adapter.
	SkippedRecords int

	// Pages logs every page that was fetched and extracted, in order.
	Pages []PageVisit

	// Terminated is set once the controller reaches its terminal state.
	Terminated bool

	// Reason is why the crawl terminated. ReasonNone while running.
	Reason TerminationReason

	// Err is the page-level error that caused termination, if any.
	Err error

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time
	FinishedAt time.Time

	visited map[string]struct{}
}

// NewCrawlState returns an empty state positioned at start.
func NewCrawlState(start *url.URL) *CrawlState {
	return &CrawlState{
		Records: make([]Record, 0),
		Current: start,
		visited: make(map[string]struct{}),
	}
}

// Accept appends page records to the accumulation, preserving order.
func (s *CrawlState) Accept(records []Record) {
	s.Records = append(s.Records, records...)
}

// AddPage logs a processed page and its records.
// The page's Number is assigned from the visit count.
func (s *CrawlState) AddPage(visit PageVisit, records []Record) PageVisit {
	s.Accept(records)
	s.PagesVisited++
	s.SkippedRecords += visit.Skipped
	visit.Number = s.PagesVisited
	visit.Records = len(records)
	s.Pages = append(s.Pages, visit)
	return visit
}

// Visit marks key as visited. It returns false if it had been visited before.
func (s *CrawlState) Visit(key string) bool {
	if s.visited == nil {
		s.visited = make(map[string]struct{})
	}
	if _, ok := s.visited[key]; ok {
		return false
	}
	s.visited[key] = struct{}{}
	return true
}

// Visited reports whether key has been visited.
func (s *CrawlState) Visited(key string) bool {
	_, ok := s.visited[key]
	return ok
}

// Terminate moves the state into its terminal form. Only the first call has
// any effect.
func (s *CrawlState) Terminate(reason TerminationReason, err error, at time.Time) {
	if s.Terminated {
		return
	}
	s.Terminated = true
	s.Reason = reason
	s.Err = err
	s.FinishedAt = at
}

// Summary returns a serializable snapshot of the run.
func (s *CrawlState) Summary() Summary {
	sum := Summary{
		Records:        len(s.Records),
		PagesVisited:   s.PagesVisited,
		SkippedRecords: s.SkippedRecords,
		Reason:         s.Reason,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.FinishedAt,
	}
	if s.Current != nil {
		sum.LastURL = s.Current.String()
	}
	if s.Err != nil {
		sum.Error = s.Err.Error()
	}
	return sum
}

// Summary is the reporting view of a finished crawl.
type Summary struct {
	Records        int               `json:"records"`
	PagesVisited   int               `json:"pages_visited"`
	SkippedRecords int               `json:"skipped_records"`
	Reason         TerminationReason `json:"reason"`
	LastURL        string            `json:"last_url,omitempty"`
	Error          string            `json:"error,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// Partial reports whether the crawl stopped on a page-level failure after
// collecting at least one record.
func (s Summary) Partial() bool {
	return !s.Reason.Complete() && s.Records > 0
}

// Empty reports whether the crawl stopped on a page-level failure before any
// record was collected.
func (s Summary) Empty() bool {
	return !s.Reason.Complete() && s.Records == 0
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
