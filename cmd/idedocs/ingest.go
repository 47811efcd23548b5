package main

import (
	"fmt"
	"path/filepath"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/crawl"
	"github.com/fwojciec/idedocs/fs"
	"github.com/fwojciec/idedocs/ingest"
)

// Run executes the ingest command.
func (c *IngestCmd) Run(deps *Dependencies) error {
	tool, err := findTool(deps, c.Name)
	if err != nil {
		return err
	}

	opts := ingest.DefaultRunOptions()
	opts.Crawl.MaxDepth = c.MaxDepth
	opts.Crawl.MaxPages = c.MaxPages
	opts.Crawl.RateLimit = c.RateLimit
	opts.Crawl.Timeout = c.Timeout
	opts.Crawl.RetryAttempts = c.Retries
	opts.Crawl.Concurrency = c.Concurrency
	opts.Crawl.RespectRobotsTxt = !c.IgnoreRobots
	opts.Crawl.UseSitemap = c.Sitemap
	opts.Crawl.UserAgent = userAgent
	opts.Chunk = idedocs.ChunkOptions{MaxTokens: c.ChunkTokens, OverlapTokens: c.OverlapTokens}
	opts.Progress = func(event crawl.ProgressEvent) {
		switch event.Type {
		case crawl.ProgressFailed:
			fmt.Fprintf(deps.Stderr, "  skip %s: %s\n", crawl.TruncateURL(event.URL, 72), idedocs.ErrorMessage(event.Error))
		case crawl.ProgressCompleted:
			if event.Completed%25 == 0 {
				fmt.Fprintf(deps.Stdout, "  %d pages fetched\n", event.Completed)
			}
		}
	}

	if c.Mirror != "" {
		store := fs.NewFileStore(c.Mirror, tool.Name)
		store.Version = tool.DocVersion
		opts.Mirror = store
	}

	ingester := *deps.Ingester
	crawler := *ingester.Crawler
	ingester.Crawler = &crawler
	if err := c.chooseFetcher(deps, tool, &crawler); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Ingesting %s\n", tool.Name)
	report, err := ingester.Run(deps.Ctx, tool.ID, opts)
	if report != nil && report.Crawl != nil {
		fmt.Fprintf(deps.Stdout, "  %s\n", crawl.Summary(report.Crawl))
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}

	if n := len(report.Embed.Failed); n > 0 {
		fmt.Fprintf(deps.Stderr, "  %d chunks could not be embedded; run ingest again to retry\n", n)
	}
	fmt.Fprintf(deps.Stdout, "  Embedded %d chunks\n", len(report.Embed.Succeeded))
	fmt.Fprintf(deps.Stdout, "  Format: %s (confidence %d)\n", report.Detection.PreferredFormat, report.Detection.ConfidenceScore)
	if c.Mirror != "" {
		fmt.Fprintf(deps.Stdout, "  Mirrored pages to %s\n", filepath.Join(c.Mirror, tool.Name))
	}
	fmt.Fprintf(deps.Stdout, "Done: %d chunks stored\n", report.Status.ChunksProcessed)
	return nil
}

// chooseFetcher switches the crawler to a headless browser when asked to,
// or in auto mode when the first seed renders its content with JavaScript.
func (c *IngestCmd) chooseFetcher(deps *Dependencies, tool *idedocs.Tool, crawler *crawl.Crawler) error {
	if c.Browser == "never" || deps.Browser == nil {
		return nil
	}
	browser, err := deps.Browser()
	if err != nil {
		return err
	}
	if c.Browser == "auto" && !crawl.NeedsBrowser(deps.Ctx, tool.SeedURLs[0], crawler.Fetcher, browser, crawler.Extractor) {
		return nil
	}
	fmt.Fprintln(deps.Stdout, "  Rendering pages in a headless browser")
	crawler.Fetcher = browser
	return nil
}
