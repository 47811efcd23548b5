package crawl_test

import (
	"testing"

	"github.com/fwojciec/idedocs/crawl"
	"github.com/stretchr/testify/assert"
)

func TestTruncateURL(t *testing.T) {
	t.Parallel()

	url := "https://zed.dev/docs/configuring-zed"

	assert.Equal(t, url, crawl.TruncateURL(url, 80))
	assert.Equal(t, url, crawl.TruncateURL(url, len(url)))
	assert.Equal(t, "...configuring-zed", crawl.TruncateURL(url, 18))
	assert.Equal(t, "htt", crawl.TruncateURL(url, 3))
	assert.Empty(t, crawl.TruncateURL(url, 0))
	assert.Empty(t, crawl.TruncateURL(url, -1))
}

func TestSummary(t *testing.T) {
	t.Parallel()

	t.Run("lists non-zero counts", func(t *testing.T) {
		t.Parallel()

		got := crawl.Summary(&crawl.Stats{Fetched: 12, Failed: 1, SkippedRobots: 3, ChunksStored: 140})

		assert.Equal(t, "12 pages fetched, 1 failed, 3 disallowed by robots.txt, 140 new chunks", got)
	})

	t.Run("uses singular nouns", func(t *testing.T) {
		t.Parallel()

		got := crawl.Summary(&crawl.Stats{Fetched: 1, SkippedPattern: 2, ChunksStored: 1})

		assert.Equal(t, "1 page fetched, 2 outside allowed patterns, 1 new chunk", got)
	})

	t.Run("handles a missing crawl", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "nothing crawled", crawl.Summary(nil))
	})
}
