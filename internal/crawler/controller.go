package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/bookharvest/internal/catalog"
	"github.com/nao1215/bookharvest/internal/clock"
	"github.com/nao1215/bookharvest/internal/fetcher"
	"github.com/nao1215/bookharvest/internal/model"
)

// Sentinel errors recorded in model.CrawlState.Err or returned by Run.
var (
	// ErrInvalidStartURL means the start URL is not an absolute http(s) URL.
	ErrInvalidStartURL = errors.New("invalid start URL")

	// ErrCycleDetected means a next reference pointed at a visited page.
	ErrCycleDetected = errors.New("pagination cycle detected")

	// ErrPageLimit means the page cap stopped the crawl.
	ErrPageLimit = errors.New("page limit reached")
)

// DefaultTargetRecords is the default minimum number of records to collect.
const DefaultTargetRecords = 500

// Fetcher retrieves one page. *fetcher.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, target *url.URL) (*fetcher.Result, error)
}

// Extractor turns a fetched page into records. *catalog.Adapter implements it.
type Extractor interface {
	Extract(pageURL *url.URL, body []byte) (catalog.Page, error)
}

// Policy is the part of the robots checker the controller drives directly.
// *policy.Checker implements it.
type Policy interface {
	Init(ctx context.Context, origin *url.URL) error
	CrawlDelay(ctx context.Context, target *url.URL) time.Duration
}

// DelayRaiser is a rate limiter whose minimum delay can be raised.
// *ratelimit.Limiter implements it.
type DelayRaiser interface {
	MinDelay() time.Duration
	SetMinDelay(d time.Duration)
}

// Phase is a state of the controller's state machine.
type Phase int

const (
	// PhaseInitializing validates the start URL and loads the policy.
	PhaseInitializing Phase = iota
	// PhaseFetching retrieves the current page.
	PhaseFetching
	// PhaseExtracting turns the fetched page into records.
	PhaseExtracting
	// PhaseDeciding accumulates records and picks the next page.
	PhaseDeciding
	// PhaseTerminated is final.
	PhaseTerminated
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseFetching:
		return "fetching"
	case PhaseExtracting:
		return "extracting"
	case PhaseDeciding:
		return "deciding"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PageProgress is reported after every page that was fetched and extracted.
type PageProgress struct {
	model.PageVisit

	// Total is the accumulated record count after this page.
	Total int
}

// Controller walks a catalog's chain of "next" links one page at a time.
//
// A Controller runs once. Calling Run after it has terminated returns the
// same state without fetching again. It is not safe for concurrent use.
type Controller struct {
	startURL string
	target   int
	maxPages int

	fetcher Fetcher
	adapter Extractor
	policy  Policy
	limiter DelayRaiser
	clock   clock.Clock
	logger  *slog.Logger
	onPage  func(PageProgress)

	phase   Phase
	state   *model.CrawlState
	initErr error
}

// Option configures a Controller.
type Option func(*Controller)

// WithTargetRecords sets the minimum number of records after which the
// crawl stops.
func WithTargetRecords(n int) Option {
	return func(c *Controller) {
		c.target = n
	}
}

// WithMaxPages caps the number of pages fetched. Zero means no cap.
func WithMaxPages(n int) Option {
	return func(c *Controller) {
		c.maxPages = n
	}
}

// WithPolicy sets the robots checker initialised before the first fetch.
func WithPolicy(p Policy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithDelayRaiser lets the controller raise the rate limiter's delay to the
// robots crawl-delay.
func WithDelayRaiser(l DelayRaiser) Option {
	return func(c *Controller) {
		c.limiter = l
	}
}

// WithClock sets the clock used for run timestamps.
func WithClock(cl clock.Clock) Option {
	return func(c *Controller) {
		c.clock = cl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithOnPage registers a callback invoked after each processed page.
func WithOnPage(fn func(PageProgress)) Option {
	return func(c *Controller) {
		c.onPage = fn
	}
}

// NewController returns a Controller that starts at startURL.
func NewController(startURL string, f Fetcher, a Extractor, opts ...Option) *Controller {
	c := &Controller{
		startURL: startURL,
		target:   DefaultTargetRecords,
		fetcher:  f,
		adapter:  a,
		clock:    clock.Real{},
		phase:    PhaseInitializing,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Phase returns the controller's current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// State returns the crawl state, or nil before Run.
func (c *Controller) State() *model.CrawlState {
	return c.state
}

// ShouldStop is the termination predicate evaluated after each page.
// The crawl stops once total records reach target, or when the page had no
// next reference.
func ShouldStop(total, target int, hasNext bool) (model.TerminationReason, bool) {
	if total >= target {
		return model.ReasonTargetReached, true
	}
	if !hasNext {
		return model.ReasonExhausted, true
	}
	return model.ReasonNone, false
}

// Run drives the state machine until it terminates and returns the final
// state. Page-level failures do not produce an error: they terminate the
// crawl with a reason and keep the records collected so far. Run returns an
// error only when the start URL is unusable.
//
// The context is checked between phases; cancellation terminates the crawl
// with model.ReasonCancelled.
func (c *Controller) Run(ctx context.Context) (*model.CrawlState, error) {
	if c.phase == PhaseTerminated {
		return c.state, c.initErr
	}

	var (
		result *fetcher.Result
		page   catalog.Page
	)

	for c.phase != PhaseTerminated {
		if c.phase != PhaseInitializing && ctx.Err() != nil {
			c.terminate(model.ReasonCancelled, ctx.Err())
			break
		}

		switch c.phase {
		case PhaseInitializing:
			if err := c.initialize(ctx); err != nil {
				c.phase = PhaseTerminated
				c.initErr = err
				return nil, err
			}
		case PhaseFetching:
			result = c.fetch(ctx)
		case PhaseExtracting:
			page = c.extract(result)
		case PhaseDeciding:
			c.decide(result, page)
			result, page = nil, catalog.Page{}
		}
	}

	return c.state, nil
}

// initialize validates the start URL, resets the state and loads the robots
// policy.
func (c *Controller) initialize(ctx context.Context) error {
	start, err := parseStartURL(c.startURL)
	if err != nil {
		return err
	}

	c.state = model.NewCrawlState(start)
	c.state.StartedAt = c.clock.Now()
	c.state.Visit(normalizeURL(start))

	if c.policy != nil {
		if err := c.policy.Init(ctx, start); err != nil {
			c.logger.Warn("robots policy unavailable, continuing", "url", start.String(), "error", err)
		}
		if c.limiter != nil {
			if d := c.policy.CrawlDelay(ctx, start); d > c.limiter.MinDelay() {
				c.logger.Info("raising request delay to robots crawl-delay", "delay", d)
				c.limiter.SetMinDelay(d)
			}
		}
	}

	c.logger.Info("crawl started",
		"start", start.String(),
		"targetRecords", c.target,
		"maxPages", c.maxPages,
	)
	c.phase = PhaseFetching
	return nil
}

// fetch retrieves the current page.
func (c *Controller) fetch(ctx context.Context) *fetcher.Result {
	current := c.state.Current
	result, err := c.fetcher.Fetch(ctx, current)
	if err != nil {
		// A per-attempt timeout also wraps context.DeadlineExceeded, so
		// cancellation is read from the caller's context.
		switch {
		case ctx.Err() != nil:
			c.terminate(model.ReasonCancelled, err)
		case errors.Is(err, fetcher.ErrPolicyDenied):
			c.terminate(model.ReasonPolicyDenied, err)
		default:
			c.terminate(model.ReasonFetchFailed, err)
		}
		return nil
	}
	c.phase = PhaseExtracting
	return result
}

// extract parses the fetched page. Relative references in the page resolve
// against the URL the content was finally served from.
func (c *Controller) extract(result *fetcher.Result) catalog.Page {
	pageURL := result.FinalURL
	if pageURL == nil {
		pageURL = c.state.Current
	}
	page, err := c.adapter.Extract(pageURL, result.Body)
	if err != nil {
		c.terminate(model.ReasonExtractFailed, fmt.Errorf("extract %s: %w", pageURL, err))
		return catalog.Page{}
	}
	c.phase = PhaseDeciding
	return page
}

// decide accumulates the page and picks the next target or terminates.
func (c *Controller) decide(result *fetcher.Result, page catalog.Page) {
	s := c.state
	visit := s.AddPage(model.PageVisit{
		URL:         s.Current.String(),
		StatusCode:  result.StatusCode,
		ContentType: result.ContentType,
		ContentHash: result.Hash,
		Attempts:    result.Attempts,
		Skipped:     page.Skipped,
		FetchedAt:   result.FetchedAt,
	}, page.Records)

	c.logger.Info("page processed",
		"url", visit.URL,
		"page", visit.Number,
		"records", visit.Records,
		"skipped", visit.Skipped,
		"total", len(s.Records),
	)
	if c.onPage != nil {
		c.onPage(PageProgress{PageVisit: visit, Total: len(s.Records)})
	}

	if reason, stop := ShouldStop(len(s.Records), c.target, page.HasNext()); stop {
		c.terminate(reason, nil)
		return
	}

	base := s.Current
	if result.FinalURL != nil {
		base = result.FinalURL
	}
	next, err := resolveNext(base, page.Next)
	if err != nil {
		c.terminate(model.ReasonExtractFailed, err)
		return
	}

	if !s.Visit(normalizeURL(next)) {
		c.terminate(model.ReasonCycleDetected, fmt.Errorf("%w: %s", ErrCycleDetected, next))
		return
	}

	if c.maxPages > 0 && s.PagesVisited >= c.maxPages {
		c.terminate(model.ReasonPageLimit, fmt.Errorf("%w: %d", ErrPageLimit, c.maxPages))
		return
	}

	s.Current = next
	c.phase = PhaseFetching
}

// terminate moves the machine into its terminal phase.
func (c *Controller) terminate(reason model.TerminationReason, err error) {
	c.state.Terminate(reason, err, c.clock.Now())
	c.phase = PhaseTerminated

	attrs := []any{
		"reason", reason.String(),
		"pages", c.state.PagesVisited,
		"records", len(c.state.Records),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if reason.Complete() {
		c.logger.Info("crawl finished", attrs...)
		return
	}
	c.logger.Warn("crawl stopped early", attrs...)
}

// parseStartURL accepts only absolute http and https URLs.
func parseStartURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStartURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https: %q", ErrInvalidStartURL, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host: %q", ErrInvalidStartURL, raw)
	}
	return u, nil
}

// resolveNext resolves a possibly relative next reference against the page
// it was found on.
func resolveNext(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, fmt.Errorf("invalid next reference %q: %w", ref, err)
	}
	return base.ResolveReference(u), nil
}

// normalizeURL returns the visited-set key of u. Fragments are dropped,
// scheme and host are lower-cased and an empty path equals "/".
func normalizeURL(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" {
		n.Path = "/"
	}
	return n.String()
}
