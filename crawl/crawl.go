// Package crawl provides breadth-first crawling of documentation sites
// under depth, page, robots.txt, pattern and per-host rate constraints.
package crawl

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/retry"
)

// Crawler orchestrates the crawling of documentation sites.
// All per-run state (frontier, host limiter, robots cache) is created by
// Crawl, so one Crawler can run independent crawls concurrently.
type Crawler struct {
	Fetcher   idedocs.Fetcher
	Extractor idedocs.Extractor
	Converter idedocs.Converter
	Links     idedocs.LinkExtractor

	// Handler receives every successfully fetched page. A nil Handler
	// discovers pages without storing them.
	Handler idedocs.PageHandler

	// Sitemaps, if set, adds sitemap URLs of the seed sites at depth 1 when
	// Options.UseSitemap is true.
	Sitemaps idedocs.SitemapService

	// RobotsClient fetches robots.txt files. Defaults to http.DefaultClient.
	RobotsClient *http.Client

	Logger *slog.Logger
}

// Options configures a single crawl.
type Options struct {
	MaxDepth int
	MaxPages int

	// RateLimit is the minimum interval between requests to the same host.
	RateLimit time.Duration

	RespectRobotsTxt bool

	// Timeout bounds each individual fetch attempt.
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first failed fetch.
	RetryAttempts int

	// Retry supplies backoff delays; its Attempts is replaced by
	// RetryAttempts+1.
	Retry retry.Policy

	// AllowedPatterns restricts discovered URLs to those matching at least
	// one pattern. Empty allows all. Seed URLs are always allowed.
	AllowedPatterns []*regexp.Regexp

	Concurrency int
	UserAgent   string
	UseSitemap  bool
}

// DefaultOptions returns the options used when a tool does not override them.
func DefaultOptions() Options {
	return Options{
		MaxDepth:         3,
		MaxPages:         500,
		RateLimit:        500 * time.Millisecond,
		RespectRobotsTxt: true,
		Timeout:          30 * time.Second,
		RetryAttempts:    3,
		Retry:            retry.DefaultPolicy(),
		Concurrency:      4,
		UserAgent:        "idedocs",
	}
}

// Validate returns an error if the options cannot bound a crawl.
func (o Options) Validate() error {
	switch {
	case o.MaxDepth < 0:
		return idedocs.Errorf(idedocs.EINVALID, "max depth must not be negative")
	case o.MaxPages < 1:
		return idedocs.Errorf(idedocs.EINVALID, "max pages must be at least 1")
	case o.RateLimit < 0:
		return idedocs.Errorf(idedocs.EINVALID, "rate limit must not be negative")
	case o.RetryAttempts < 0:
		return idedocs.Errorf(idedocs.EINVALID, "retry attempts must not be negative")
	}
	return nil
}

// CompilePatterns compiles allowed-URL patterns.
// Returns EINVALID naming the first pattern that does not compile.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, idedocs.Errorf(idedocs.EINVALID, "invalid allowed pattern %q: %v", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

// Stats holds the outcome of a crawl.
type Stats struct {
	Visited        int // pages dispatched for fetching
	Fetched        int // pages fetched and handled
	Failed         int
	SkippedRobots  int
	SkippedPattern int
	ChunksStored   int
	MaxDepthSeen   int

	// Pages lists every URL the crawl recorded, without content.
	Pages []*idedocs.Page
}

// ProgressEvent reports progress during a crawl operation.
type ProgressEvent struct {
	Type      ProgressType
	Completed int
	URL       string
	Depth     int
	Error     error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressCompleted ProgressType = iota
	ProgressFailed
	ProgressSkipped
	ProgressFinished
)

// ProgressFunc is a callback for reporting crawl progress.
type ProgressFunc func(event ProgressEvent)

// Crawl crawls breadth-first from seeds on behalf of toolID.
//
// Links are followed only on the seed hosts and only while their depth does
// not exceed opts.MaxDepth; at most opts.MaxPages pages are fetched. A page
// that fails after all retries is recorded and the crawl continues. If ctx
// is cancelled, in-flight fetches are drained and the partial Stats are
// returned together with ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, seeds []string, toolID string, opts Options, progress ProgressFunc) (*Stats, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, idedocs.Errorf(idedocs.EINVALID, "at least one seed URL required")
	}

	run, err := c.newRun(ctx, seeds, toolID, opts, progress)
	if err != nil {
		return nil, err
	}
	run.walk(ctx)

	if progress != nil {
		progress(ProgressEvent{Type: ProgressFinished, Completed: run.completed})
	}
	return run.stats, ctx.Err()
}
