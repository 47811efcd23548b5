package crawl_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/idedocs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawler_Crawl_Concurrency(t *testing.T) {
	t.Parallel()

	t.Run("processes pages in parallel", func(t *testing.T) {
		t.Parallel()

		const numPages = 10
		pages := map[string][]string{"/": nil}
		for i := 1; i <= numPages; i++ {
			p := fmt.Sprintf("/page%d", i)
			pages["/"] = append(pages["/"], p)
			pages[p] = nil
		}
		s := newSite(t, "", pages)

		var maxConcurrent, current atomic.Int32
		c := s.crawler()
		c.Fetcher = &mock.Fetcher{
			FetchFn: func(_ context.Context, rawURL string) (string, error) {
				n := current.Add(1)
				for {
					m := maxConcurrent.Load()
					if n <= m || maxConcurrent.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				current.Add(-1)
				return "<html></html>", nil
			},
		}
		opts := testOptions()
		opts.Concurrency = 3

		stats, err := c.Crawl(context.Background(), []string{s.url("/")}, "tool-1", opts, nil)

		require.NoError(t, err)
		assert.Equal(t, numPages+1, stats.Fetched)
		assert.GreaterOrEqual(t, maxConcurrent.Load(), int32(2))
		assert.LessOrEqual(t, maxConcurrent.Load(), int32(3))
	})

	t.Run("spaces requests to the same host", func(t *testing.T) {
		t.Parallel()

		s := newSite(t, "", map[string][]string{
			"/":  {"/a", "/b", "/c"},
			"/a": nil,
			"/b": nil,
			"/c": nil,
		})
		opts := testOptions()
		opts.RespectRobotsTxt = false
		opts.RateLimit = 30 * time.Millisecond

		start := time.Now()
		stats, err := s.crawler().Crawl(context.Background(), []string{s.url("/")}, "tool-1", opts, nil)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, 4, stats.Fetched)
		// Burst of one: the first request is immediate, the next three wait.
		assert.GreaterOrEqual(t, elapsed, 85*time.Millisecond)
	})
}
