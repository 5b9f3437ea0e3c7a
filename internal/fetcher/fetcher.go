package fetcher

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/bookharvest/internal/clock"
)

// Policy decides whether a URL may be fetched.
type Policy interface {
	Allowed(ctx context.Context, target *url.URL) bool
}

// Limiter spaces outbound requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// allowAll is the Policy used when none is configured.
type allowAll struct{}

func (allowAll) Allowed(context.Context, *url.URL) bool { return true }

// noWait is the Limiter used when none is configured.
type noWait struct{}

func (noWait) Wait(context.Context) error { return nil }

// Result is a successfully fetched page.
type Result struct {
	// URL is the requested target.
	URL *url.URL

	// FinalURL is the URL after redirects. Relative references in the body
	// resolve against it.
	FinalURL *url.URL

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header.
	ContentType string

	// Body is the decoded response body.
	Body []byte

	// Hash is the hex SHA3-256 of Body.
	Hash string

	// Attempts is how many network attempts the fetch took.
	Attempts int

	// FetchedAt is when the successful response arrived.
	FetchedAt time.Time
}

// Fetcher performs one logical "fetch URL" operation: policy check, rate
// limiting, a bounded HTTP GET and retries with linear back-off for
// transient failures.
//
// A Fetcher holds no per-target state; the retry budget lives on the stack
// of each Fetch call.
type Fetcher struct {
	client      *http.Client
	policy      Policy
	limiter     Limiter
	clock       clock.Clock
	logger      *slog.Logger
	retry       RetryPolicy
	userAgent   string
	headers     map[string]string
	cookie      string
	timeout     time.Duration
	maxBodySize int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithPolicy sets the robots policy consulted before every fetch.
func WithPolicy(p Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithLimiter sets the rate limiter waited on before every attempt.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithClock sets the clock used for back-off sleeps.
func WithClock(c clock.Clock) Option {
	return func(f *Fetcher) {
		f.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithRetryPolicy sets the retry budget applied to every fetch.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(f *Fetcher) {
		f.retry = p
	}
}

// WithHeaders adds custom request headers.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithCookie sets the Cookie header sent with every request.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithTimeout bounds each attempt, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize caps the decoded body size. Larger bodies are malformed.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// New returns a Fetcher that identifies itself as userAgent.
func New(userAgent string, opts ...Option) *Fetcher {
	f := &Fetcher{
		policy:      allowAll{},
		limiter:     noWait{},
		clock:       clock.Real{},
		retry:       DefaultRetryPolicy(),
		userAgent:   userAgent,
		timeout:     10 * time.Second,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Fetch retrieves target.
//
// A disallowed target fails with ErrPolicyDenied without touching the
// network. Every attempt first waits its turn on the rate limiter. A
// transient failure (timeout, connection error, 5xx, 429) is followed by a
// back-off of attempt*BackoffUnit; once MaxAttempts attempts have failed the
// fetch ends with ErrRetriesExhausted. Any other failure ends it at once with
// ErrClientError. Context cancellation is returned as the context's error.
func (f *Fetcher) Fetch(ctx context.Context, target *url.URL) (*Result, error) {
	if target == nil || !target.IsAbs() {
		return nil, &FetchError{URL: fmt.Sprint(target), Kind: KindClientError, Err: errors.New("target is not an absolute URL")}
	}
	targetURL := target.String()

	if !f.policy.Allowed(ctx, target) {
		f.logger.Warn("target disallowed by robots policy", "url", targetURL)
		return nil, &FetchError{URL: targetURL, Kind: KindPolicyDenied}
	}

	maxAttempts := f.retry.attempts()
	var (
		lastErr    error
		lastStatus int
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := f.attempt(ctx, target)
		if err == nil {
			result.Attempts = attempt
			f.logger.Debug("fetched page",
				"url", targetURL,
				"status", result.StatusCode,
				"bytes", len(result.Body),
				"hash", result.Hash,
				"attempt", attempt,
			)
			return result, nil
		}

		// The caller gave up; this is not a failure of the target.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		var se *statusError
		if errors.As(err, &se) {
			lastStatus = se.code
		}

		if !transient(err) {
			f.logger.Warn("fetch failed permanently",
				"url", targetURL,
				"attempt", attempt,
				"error", err,
			)
			return nil, &FetchError{URL: targetURL, Kind: KindClientError, Attempts: attempt, StatusCode: lastStatus, Err: err}
		}

		backoff := f.retry.Backoff(attempt)
		f.logger.Warn("fetch attempt failed, backing off",
			"url", targetURL,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"backoff", backoff,
			"error", err,
		)
		if err := f.clock.Sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, &FetchError{URL: targetURL, Kind: KindRetriesExhausted, Attempts: maxAttempts, StatusCode: lastStatus, Err: lastErr}
}

// attempt performs a single bounded GET.
func (f *Fetcher) attempt(ctx context.Context, target *url.URL) (*Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &malformedError{err: fmt.Errorf("build request: %w", err)}
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := readBody(resp, f.maxBodySize)
	if err != nil {
		return nil, err
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	sum := sha3.Sum256(body)
	return &Result{
		URL:         target,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Hash:        hex.EncodeToString(sum[:]),
		FetchedAt:   f.clock.Now(),
	}, nil
}

// setHeaders applies identification, negotiation and configured headers.
func (f *Fetcher) setHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
}
