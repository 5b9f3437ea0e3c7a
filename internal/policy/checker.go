// Package policy answers whether the harvester may fetch a URL according to
// the origin's robots.txt.
//
// Politeness is best effort: a robots.txt that cannot be fetched, is missing
// or cannot be parsed is treated as "allow everything" rather than failing the
// crawl.
package policy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// maxPolicySize caps how much of a robots.txt is read.
const maxPolicySize = 512 * 1024

// defaultTimeout is used when no HTTP client is supplied.
const defaultTimeout = 10 * time.Second

// Checker evaluates robots.txt rules for one user agent.
// Each origin's document is fetched at most once and cached for the lifetime
// of the Checker.
type Checker struct {
	client    *http.Client
	userAgent string
	respect   bool
	logger    *slog.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient sets the client used to download robots.txt.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		c.client = client
	}
}

// WithRespect turns policy evaluation on or off. When off, every URL is
// allowed and no robots.txt is downloaded.
func WithRespect(respect bool) Option {
	return func(c *Checker) {
		c.respect = respect
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker returns a Checker for userAgent.
func NewChecker(userAgent string, opts ...Option) *Checker {
	c := &Checker{
		userAgent: userAgent,
		respect:   true,
		groups:    make(map[string]*robotstxt.Group),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: defaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Init loads the policy for the origin of target. Calling it again for the
// same origin is a no-op. It only returns an error for a target that has no
// origin; network and parse failures fall back to the permissive policy.
func (c *Checker) Init(ctx context.Context, target *url.URL) error {
	if !c.respect {
		return nil
	}
	if target == nil || !target.IsAbs() || target.Host == "" {
		return fmt.Errorf("policy: %q has no origin", target)
	}
	_ = c.groupFor(ctx, target)
	return nil
}

// Allowed reports whether target may be fetched. The origin's policy is
// loaded lazily if Init was not called for it.
func (c *Checker) Allowed(ctx context.Context, target *url.URL) bool {
	if !c.respect {
		return true
	}
	if target == nil || !target.IsAbs() {
		return false
	}
	return c.groupFor(ctx, target).Test(pathOf(target))
}

// CrawlDelay returns the crawl-delay the origin of target asks of this user
// agent, or zero.
func (c *Checker) CrawlDelay(ctx context.Context, target *url.URL) time.Duration {
	if !c.respect || target == nil || !target.IsAbs() {
		return 0
	}
	return c.groupFor(ctx, target).CrawlDelay
}

// groupFor returns the cached group for target's origin, loading it on first
// use.
func (c *Checker) groupFor(ctx context.Context, target *url.URL) *robotstxt.Group {
	origin := originOf(target)

	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.groups[origin]; ok {
		return g
	}

	data, err := c.load(ctx, origin)
	if err != nil {
		c.logger.Warn("robots.txt unavailable, allowing all paths",
			"origin", origin,
			"error", err,
		)
		data = permissive()
	}

	g := data.FindGroup(c.userAgent)
	c.groups[origin] = g
	c.logger.Debug("robots.txt loaded",
		"origin", origin,
		"crawlDelay", g.CrawlDelay,
	)
	return g
}

// load downloads and parses origin/robots.txt.
func (c *Checker) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// robotstxt reads a 5xx as "disallow everything"; an unreachable policy
	// is permissive here.
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPolicySize))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// permissive returns a policy that allows everything.
func permissive() *robotstxt.RobotsData {
	data, err := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	if err != nil {
		// FromStatusAndBytes never fails for a 404.
		panic(err)
	}
	return data
}

// originOf returns scheme://host of u, lower-cased.
func originOf(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// pathOf returns the path and query of u as matched by robots rules.
func pathOf(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
