package crawl

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/retry"
	"golang.org/x/sync/errgroup"
)

// run holds the state of a single crawl. Stats and the skip bookkeeping are
// owned by the coordinator goroutine; the frontier, limiter and robots
// policy are shared with workers.
type run struct {
	c        *Crawler
	opts     Options
	toolID   string
	logger   *slog.Logger
	progress ProgressFunc

	frontier *Frontier
	limiter  *HostLimiter
	robots   *RobotsPolicy
	hosts    map[string]bool

	stats     *Stats
	completed int
}

// pageResult is the outcome of processing a single link in a worker.
type pageResult struct {
	link   Link
	page   *idedocs.Page
	chunks int
	links  []string
}

func (c *Crawler) newRun(ctx context.Context, seeds []string, toolID string, opts Options, progress ProgressFunc) (*run, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &run{
		c:        c,
		opts:     opts,
		toolID:   toolID,
		logger:   logger,
		progress: progress,
		frontier: NewFrontier(opts.MaxPages),
		limiter:  NewHostLimiter(opts.RateLimit),
		hosts:    make(map[string]bool),
		stats:    &Stats{},
	}
	r.robots = NewRobotsPolicy(c.RobotsClient, opts.UserAgent, r.limiter)

	normalized := make([]string, 0, len(seeds))
	origins := make(map[string]bool)
	for _, s := range seeds {
		n, err := NormalizeURL(s)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
		u, _ := url.Parse(n)
		r.hosts[u.Host] = true
		origins[u.Scheme+"://"+u.Host] = true
	}

	if opts.RespectRobotsTxt {
		// Every in-scope host is a seed host, so loading their robots.txt up
		// front means the coordinator never waits on the network.
		g, gctx := errgroup.WithContext(ctx)
		for origin := range origins {
			g.Go(func() error {
				if err := r.robots.Load(gctx, origin); err != nil {
					r.logger.Warn("robots.txt unavailable, host disallowed", "origin", origin, "err", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, seed := range normalized {
		r.enqueue(ctx, seed, 0, true)
	}

	if opts.UseSitemap && c.Sitemaps != nil && opts.MaxDepth >= 1 {
		for origin := range origins {
			urls, err := c.Sitemaps.DiscoverURLs(ctx, origin)
			if err != nil {
				r.logger.Warn("sitemap discovery failed", "origin", origin, "err", err)
				continue
			}
			for _, u := range urls {
				r.enqueue(ctx, u, 1, false)
			}
		}
	}
	return r, nil
}

// enqueue applies scope, depth, pattern and robots rules to a discovered
// URL and queues it if it passes. Called only from the coordinator.
func (r *run) enqueue(ctx context.Context, rawURL string, depth int, seed bool) {
	if depth > r.opts.MaxDepth {
		return
	}
	n, err := NormalizeURL(rawURL)
	if err != nil || !r.hosts[hostOf(n)] {
		return
	}
	if r.frontier.Seen(n) {
		return
	}

	if !seed && !r.matchesPatterns(n) {
		r.frontier.Visit(n)
		r.skip(n, depth, idedocs.PageSkippedPattern)
		return
	}
	if r.opts.RespectRobotsTxt {
		allowed, _ := r.robots.Allowed(ctx, n)
		if !allowed {
			r.frontier.Visit(n)
			r.skip(n, depth, idedocs.PageSkippedRobots)
			return
		}
	}
	r.frontier.Push(Link{URL: n, Depth: depth})
}

func (r *run) matchesPatterns(u string) bool {
	if len(r.opts.AllowedPatterns) == 0 {
		return true
	}
	for _, re := range r.opts.AllowedPatterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

func (r *run) skip(u string, depth int, status idedocs.PageStatus) {
	switch status {
	case idedocs.PageSkippedRobots:
		r.stats.SkippedRobots++
	case idedocs.PageSkippedPattern:
		r.stats.SkippedPattern++
	}
	r.stats.Pages = append(r.stats.Pages, &idedocs.Page{ToolID: r.toolID, URL: u, Depth: depth, Status: status})
	r.logger.Debug("skipped", "url", u, "status", status)
	if r.progress != nil {
		r.progress(ProgressEvent{Type: ProgressSkipped, Completed: r.completed, URL: u, Depth: depth})
	}
}

// walk runs a pool of workers fed by the coordinator loop until the
// frontier is exhausted, the page budget is spent or ctx is done.
func (r *run) walk(ctx context.Context) {
	concurrency := r.opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	workCh := make(chan Link, concurrency)
	resultCh := make(chan pageResult)

	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for link := range workCh {
				resultCh <- r.process(ctx, link)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	dispatched := 0 // pages handed to workers
	pending := 0    // pages currently being processed
	var next *Link

	pop := func() {
		if next == nil && dispatched < r.opts.MaxPages {
			if link, ok := r.frontier.Pop(); ok {
				next = &link
			}
		}
	}
	pop()

coordinatorLoop:
	for {
		if next == nil && pending == 0 {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if next != nil {
			select {
			case <-ctx.Done():
				break coordinatorLoop
			case workCh <- *next:
				dispatched++
				pending++
				r.stats.Visited++
				r.stats.MaxDepthSeen = max(r.stats.MaxDepthSeen, next.Depth)
				next = nil
			case res := <-resultCh:
				pending--
				r.handleResult(ctx, res)
			}
		} else {
			select {
			case <-ctx.Done():
				break coordinatorLoop
			case res := <-resultCh:
				pending--
				r.handleResult(ctx, res)
			}
		}

		pop()
	}

	// Stop dispatching and keep the results of in-flight pages.
	close(workCh)
	for res := range resultCh {
		r.handleResult(ctx, res)
	}
}

// process fetches, extracts and hands off a single page. It runs in a
// worker goroutine.
func (r *run) process(ctx context.Context, link Link) pageResult {
	res := pageResult{
		link: link,
		page: &idedocs.Page{ToolID: r.toolID, URL: link.URL, Depth: link.Depth},
	}
	fail := func(err error) pageResult {
		res.page.Status = idedocs.PageFailed
		res.page.Err = err
		return res
	}

	html, err := r.fetch(ctx, link.URL)
	if err != nil {
		return fail(err)
	}

	if link.Depth < r.opts.MaxDepth && r.c.Links != nil {
		links, err := r.c.Links.ExtractLinks(html, link.URL)
		if err != nil {
			r.logger.Debug("link extraction failed", "url", link.URL, "err", err)
		}
		res.links = links
	}

	extracted, err := r.c.Extractor.Extract(html)
	if err != nil {
		return fail(err)
	}
	markdown, err := r.c.Converter.Convert(extracted.ContentHTML)
	if err != nil {
		return fail(err)
	}
	res.page.Title = extracted.Title
	res.page.Content = markdown
	res.page.Status = idedocs.PageOK

	if r.c.Handler != nil {
		n, err := r.c.Handler.HandlePage(ctx, res.page)
		if err != nil {
			return fail(err)
		}
		res.chunks = n
	}
	return res
}

// fetch retrieves a page with per-host rate limiting, a per-attempt
// timeout and bounded retries.
func (r *run) fetch(ctx context.Context, rawURL string) (string, error) {
	host := hostOf(rawURL)
	policy := r.opts.Retry.WithAttempts(r.opts.RetryAttempts + 1)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "delay", delay, "err", err)
	}

	return retry.Value(ctx, policy, func(ctx context.Context) (string, error) {
		if err := r.limiter.Wait(ctx, host); err != nil {
			return "", err
		}
		fctx := ctx
		if r.opts.Timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
		}
		html, err := r.c.Fetcher.Fetch(fctx, rawURL)
		if err != nil && ctx.Err() == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) {
			return "", idedocs.Errorf(idedocs.EUNAVAILABLE, "fetch %s timed out", rawURL)
		}
		return html, err
	})
}

// handleResult records a finished page and enqueues its links. Called only
// from the coordinator.
func (r *run) handleResult(ctx context.Context, res pageResult) {
	r.completed++
	page := res.page

	event := ProgressEvent{Completed: r.completed, URL: page.URL, Depth: page.Depth}
	if page.Status == idedocs.PageOK {
		r.stats.Fetched++
		r.stats.ChunksStored += res.chunks
		event.Type = ProgressCompleted
	} else {
		r.stats.Failed++
		event.Type = ProgressFailed
		event.Error = page.Err
		r.logger.Warn("page failed", "url", page.URL, "err", page.Err)
	}

	// Content has been handed off; keep only the record.
	page.Content = ""
	r.stats.Pages = append(r.stats.Pages, page)
	if r.progress != nil {
		r.progress(event)
	}

	if ctx.Err() != nil {
		return
	}
	for _, l := range res.links {
		r.enqueue(ctx, l, res.link.Depth+1, false)
	}
}
