// Package catalog turns a fetched catalog page into listing records and a
// reference to the following page.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/bookharvest/internal/model"
)

// ErrMalformedRecord marks a listing that lacks a required field.
// Such listings are dropped from the page, never returned to the caller.
var ErrMalformedRecord = errors.New("malformed record")

// Selectors of the catalog mark-up.
const (
	selectorListing      = "article.product_pod"
	selectorTitle        = "h3 a"
	selectorPrice        = "p.price_color"
	selectorRating       = "p.star-rating"
	selectorAvailability = "p.instock, p.outofstock"
	selectorImage        = "div.image_container img"
	selectorNext         = "li.next a"
	ratingClass          = "star-rating"
)

// Page is what the adapter extracted from one catalog page.
type Page struct {
	// Records are the well-formed listings in document order.
	Records []model.Record

	// Next is the raw href of the "next" link, or empty on the last page.
	// It may be relative; the caller resolves it against the page URL.
	Next string

	// Skipped counts listings dropped as malformed.
	Skipped int
}

// HasNext reports whether the page links to a following page.
func (p Page) HasNext() bool {
	return p.Next != ""
}

// Adapter extracts listings from catalog pages.
type Adapter struct {
	logger *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used to report dropped listings.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter returns an Adapter.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Extract parses body, fetched from pageURL, into a Page.
// Relative detail and image URLs are resolved against pageURL.
// A malformed listing is logged and skipped; an error is returned only when
// the document cannot be parsed at all.
func (a *Adapter) Extract(pageURL *url.URL, body []byte) (Page, error) {
	if pageURL == nil || !pageURL.IsAbs() {
		return Page{}, fmt.Errorf("page URL must be absolute, got %v", pageURL)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	var page Page
	doc.Find(selectorListing).Each(func(i int, s *goquery.Selection) {
		record, err := parseListing(pageURL, s)
		if err != nil {
			page.Skipped++
			a.logger.Warn("skipping malformed listing",
				"page", pageURL.String(),
				"index", i,
				"error", err,
			)
			return
		}
		page.Records = append(page.Records, record)
	})

	if href, ok := doc.Find(selectorNext).First().Attr("href"); ok {
		page.Next = strings.TrimSpace(href)
	}

	return page, nil
}

// parseListing extracts one listing.
func parseListing(pageURL *url.URL, s *goquery.Selection) (model.Record, error) {
	link := s.Find(selectorTitle).First()

	title := strings.TrimSpace(link.AttrOr("title", ""))
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	if title == "" {
		return model.Record{}, fmt.Errorf("%w: missing title", ErrMalformedRecord)
	}

	rating, err := parseRating(s.Find(selectorRating).First())
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: %q: %w", ErrMalformedRecord, title, err)
	}

	detailURL, err := resolve(pageURL, link.AttrOr("href", ""))
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: %q: detail link: %w", ErrMalformedRecord, title, err)
	}

	// Listings without a cover are kept with an empty image URL.
	var imageURL string
	if src := strings.TrimSpace(s.Find(selectorImage).First().AttrOr("src", "")); src != "" {
		imageURL, err = resolve(pageURL, src)
		if err != nil {
			return model.Record{}, fmt.Errorf("%w: %q: image: %w", ErrMalformedRecord, title, err)
		}
	}

	return model.Record{
		Title:        title,
		Price:        strings.TrimSpace(s.Find(selectorPrice).First().Text()),
		Rating:       rating,
		Availability: normalizeAvailability(s.Find(selectorAvailability).First()),
		DetailURL:    detailURL,
		ImageURL:     imageURL,
	}, nil
}

// parseRating reads the rating word from the element's class list,
// for example class="star-rating Three".
func parseRating(s *goquery.Selection) (model.Rating, error) {
	if s.Length() == 0 {
		return model.RatingUnknown, errors.New("missing rating")
	}
	for _, class := range strings.Fields(s.AttrOr("class", "")) {
		if class == ratingClass {
			continue
		}
		if r, err := model.ParseRating(class); err == nil {
			return r, nil
		}
	}
	return model.RatingUnknown, fmt.Errorf("unknown rating class %q", s.AttrOr("class", ""))
}

// normalizeAvailability maps the stock paragraph onto InStock or OutOfStock,
// falling back to its raw text.
func normalizeAvailability(s *goquery.Selection) string {
	text := strings.Join(strings.Fields(s.Text()), " ")
	lower := strings.ToLower(text)
	switch {
	case s.HasClass("outofstock"), strings.Contains(lower, "out of stock"):
		return model.OutOfStock
	case s.HasClass("instock"), strings.Contains(lower, "in stock"):
		return model.InStock
	default:
		return text
	}
}

// resolve makes ref absolute against base.
func resolve(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	abs := base.ResolveReference(u)
	if abs.Host == "" {
		return "", fmt.Errorf("reference %q has no host", ref)
	}
	return abs.String(), nil
}
