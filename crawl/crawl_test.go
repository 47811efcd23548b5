package crawl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"slices"
	"sync"
	"testing"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/crawl"
	"github.com/fwojciec/idedocs/mock"
	"github.com/fwojciec/idedocs/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// site is a fake documentation site. Pages are keyed by path; links are
// paths on the same site.
type site struct {
	srv    *httptest.Server
	robots string
	pages  map[string][]string // path -> linked paths
	fail   map[string]bool

	mu      sync.Mutex
	fetched []string
	handled []string
	attempt map[string]int
}

func newSite(t *testing.T, robots string, pages map[string][]string) *site {
	t.Helper()
	s := &site{robots: robots, pages: pages, fail: map[string]bool{}, attempt: map[string]int{}}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" && s.robots != "" {
			_, _ = w.Write([]byte(s.robots))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) url(path string) string { return s.srv.URL + path }

func (s *site) crawler() *crawl.Crawler {
	return &crawl.Crawler{
		Fetcher: &mock.Fetcher{
			FetchFn: func(_ context.Context, rawURL string) (string, error) {
				u, _ := url.Parse(rawURL)
				s.mu.Lock()
				s.fetched = append(s.fetched, u.Path)
				s.attempt[u.Path]++
				s.mu.Unlock()
				if s.fail[u.Path] {
					return "", idedocs.Errorf(idedocs.EUNAVAILABLE, "server error")
				}
				if _, ok := s.pages[u.Path]; !ok {
					return "", idedocs.Errorf(idedocs.ENOTFOUND, "not found")
				}
				return "<html>" + u.Path + "</html>", nil
			},
		},
		Links: &mock.LinkExtractor{
			ExtractLinksFn: func(_ string, baseURL string) ([]string, error) {
				u, _ := url.Parse(baseURL)
				var links []string
				for _, p := range s.pages[u.Path] {
					links = append(links, s.url(p))
				}
				return links, nil
			},
		},
		Extractor: &mock.Extractor{
			ExtractFn: func(html string) (*idedocs.ExtractResult, error) {
				return &idedocs.ExtractResult{Title: "Page", ContentHTML: html}, nil
			},
		},
		Converter: &mock.Converter{
			ConvertFn: func(html string) (string, error) { return html, nil },
		},
		Handler: &mock.PageHandler{
			HandlePageFn: func(_ context.Context, page *idedocs.Page) (int, error) {
				u, _ := url.Parse(page.URL)
				s.mu.Lock()
				s.handled = append(s.handled, u.Path)
				s.mu.Unlock()
				return 1, nil
			},
		},
		RobotsClient: s.srv.Client(),
	}
}

func testOptions() crawl.Options {
	opts := crawl.DefaultOptions()
	opts.RateLimit = 0
	opts.Retry = retry.Policy{} // no delay for tests
	opts.Concurrency = 3
	return opts
}

func sorted(s []string) []string {
	s = slices.Clone(s)
	slices.Sort(s)
	return s
}

func TestCrawler_Crawl(t *testing.T) {
	t.Parallel()

	t.Run("honors robots.txt and max depth", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "User-agent: *\nDisallow: /private\n", map[string][]string{
			"/":        {"/a", "/private"},
			"/a":       {"/b"},
			"/b":       {},
			"/private": {},
		})
		opts := testOptions()
		opts.MaxDepth = 1

		stats, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/a"}, sorted(s.fetched))
		assert.Equal(t, []string{"/", "/a"}, sorted(s.handled))
		assert.Equal(t, 2, stats.Fetched)
		assert.Equal(t, 2, stats.ChunksStored)
		assert.Equal(t, 1, stats.SkippedRobots)
		assert.Equal(t, 1, stats.MaxDepthSeen)
		assert.NotContains(t, s.fetched, "/private")
		assert.NotContains(t, s.fetched, "/b")
	})

	t.Run("never fetches more than max pages", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{
			"/":  {"/1", "/2", "/3", "/4", "/5"},
			"/1": {}, "/2": {}, "/3": {}, "/4": {}, "/5": {},
		})
		opts := testOptions()
		opts.MaxPages = 3

		stats, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, stats.Visited)
		assert.Len(t, s.fetched, 3)
	})

	t.Run("fetches each URL once despite cycles", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{
			"/":  {"/a", "/b", "/#top"},
			"/a": {"/", "/b"},
			"/b": {"/a", "/"},
		})

		stats, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", testOptions(), nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/a", "/b"}, sorted(s.fetched))
		assert.Equal(t, 3, stats.Fetched)
	})

	t.Run("marks pages failed after retries and continues", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{
			"/":  {"/a", "/b"},
			"/a": {},
			"/b": {},
		})
		s.fail["/a"] = true
		opts := testOptions()
		opts.RetryAttempts = 2

		stats, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, s.attempt["/a"])
		assert.Equal(t, 1, stats.Failed)
		assert.Equal(t, 2, stats.Fetched)
		assert.Equal(t, []string{"/", "/b"}, sorted(s.handled))
	})

	t.Run("does not retry missing pages", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{"/": {"/missing"}})

		stats, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", testOptions(), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, s.attempt["/missing"])
		assert.Equal(t, 1, stats.Failed)
	})

	t.Run("skips links not matching allowed patterns", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{
			"/":           {"/docs/guide", "/blog/post"},
			"/docs/guide": {},
			"/blog/post":  {},
		})
		opts := testOptions()
		opts.AllowedPatterns = []*regexp.Regexp{regexp.MustCompile(`/docs/`)}

		stats, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/docs/guide"}, sorted(s.fetched))
		assert.Equal(t, 1, stats.SkippedPattern)
	})

	t.Run("stays on seed hosts", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{"/": {}})
		c := s.crawler()
		c.Links = &mock.LinkExtractor{
			ExtractLinksFn: func(_ string, _ string) ([]string, error) {
				return []string{"https://elsewhere.example.com/docs"}, nil
			},
		}

		stats, err := c.Crawl(context.Background(), []string{s.url("/")}, "tool-1", testOptions(), nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"/"}, s.fetched)
		assert.Equal(t, 1, stats.Visited)
	})

	t.Run("marks page failed when handler fails", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{"/": {}})
		c := s.crawler()
		c.Handler = &mock.PageHandler{
			HandlePageFn: func(_ context.Context, _ *idedocs.Page) (int, error) {
				return 0, idedocs.Errorf(idedocs.EINTERNAL, "store down")
			},
		}

		stats, err := c.Crawl(context.Background(), []string{s.url("/")}, "tool-1", testOptions(), nil)

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Failed)
		require.Len(t, stats.Pages, 1)
		assert.Equal(t, idedocs.PageFailed, stats.Pages[0].Status)
		assert.Empty(t, stats.Pages[0].Content)
	})

	t.Run("returns partial stats when cancelled", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{"/": {"/a"}, "/a": {}})
		ctx, cancel := context.WithCancel(context.Background())
		c := s.crawler()
		c.Handler = &mock.PageHandler{
			HandlePageFn: func(_ context.Context, _ *idedocs.Page) (int, error) {
				cancel()
				return 1, nil
			},
		}
		opts := testOptions()
		opts.Concurrency = 1

		stats, err := c.Crawl(ctx, []string{s.url("/")}, "tool-1", opts, nil)

		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, stats)
		assert.Equal(t, 1, stats.Fetched)
		assert.NotContains(t, s.fetched, "/a")
	})

	t.Run("reports progress", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "User-agent: *\nDisallow: /private\n", map[string][]string{"/": {"/private"}})
		var events []crawl.ProgressType

		_, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", testOptions(), func(e crawl.ProgressEvent) {
			events = append(events, e.Type)
		})

		require.NoError(t, err)
		assert.Equal(t, []crawl.ProgressType{crawl.ProgressCompleted, crawl.ProgressSkipped, crawl.ProgressFinished}, events)
	})

	t.Run("adds sitemap URLs at depth one", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{"/": {}, "/from-sitemap": {}})
		c := s.crawler()
		c.Sitemaps = &mock.SitemapService{
			DiscoverURLsFn: func(context.Context, string) ([]string, error) {
				return []string{s.url("/from-sitemap")}, nil
			},
		}
		opts := testOptions()
		opts.UseSitemap = true

		stats, err := c.Crawl(context.Background(), []string{s.url("/")}, "tool-1", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/from-sitemap"}, sorted(s.fetched))
		assert.Equal(t, 1, stats.MaxDepthSeen)
	})

	t.Run("rejects invalid options", func(t *testing.T) {
		t.Parallel()

		opts := testOptions()
		opts.MaxPages = 0

		_, err := (&crawl.Crawler{}).Crawl(context.Background(), []string{"https://x.dev"}, "tool-1", opts, nil)

		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})

	t.Run("rejects missing seeds", func(t *testing.T) {
		t.Parallel()

		_, err := (&crawl.Crawler{}).Crawl(context.Background(), nil, "tool-1", testOptions(), nil)

		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})
}

func TestCompilePatterns(t *testing.T) {
	t.Parallel()

	res, err := crawl.CompilePatterns([]string{`/docs/`, "", `\.html$`})
	require.NoError(t, err)
	assert.Len(t, res, 2)

	_, err = crawl.CompilePatterns([]string{`(`})
	assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
}
