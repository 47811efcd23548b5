package crawl_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/crawl"
	"github.com/fwojciec/idedocs/mock"
	"github.com/stretchr/testify/assert"
)

// passthrough extracts the HTML unchanged, failing for "broken".
var passthrough = &mock.Extractor{
	ExtractFn: func(html string) (*idedocs.ExtractResult, error) {
		if html == "broken" {
			return nil, idedocs.Errorf(idedocs.EINTERNAL, "no main content")
		}
		return &idedocs.ExtractResult{ContentHTML: html}, nil
	},
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestRenderingAddsContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		static   string
		rendered string
		want     bool
	}{
		{"rendered has more than half again as many words", words(10), words(16), true},
		{"exactly half again is not enough", words(10), words(15), false},
		{"same content", words(40), words(40), false},
		{"rendered shorter", words(40), words(5), false},
		{"static page is an empty shell", "", words(3), true},
		{"both empty", "", "", false},
		{"static extraction fails", "broken", words(3), true},
		{"rendered extraction fails", words(3), "broken", true},
		{"long tokens do not count extra", "short text", "averyveryverylongtokenwithoutspaces x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, crawl.RenderingAddsContent(tt.static, tt.rendered, passthrough))
		})
	}
}

func TestNeedsBrowser(t *testing.T) {
	t.Parallel()

	fetcher := func(html string, err error) *mock.Fetcher {
		return &mock.Fetcher{
			FetchFn: func(context.Context, string) (string, error) { return html, err },
		}
	}
	ctx := context.Background()

	t.Run("true when the browser renders the documentation", func(t *testing.T) {
		t.Parallel()

		assert.True(t, crawl.NeedsBrowser(ctx, "https://docs.cursor.com", fetcher("Loading", nil), fetcher(words(50), nil), passthrough))
	})

	t.Run("false when the static page is complete", func(t *testing.T) {
		t.Parallel()

		assert.False(t, crawl.NeedsBrowser(ctx, "https://zed.dev/docs", fetcher(words(50), nil), fetcher(words(52), nil), passthrough))
	})

	t.Run("true when the plain fetch fails", func(t *testing.T) {
		t.Parallel()

		assert.True(t, crawl.NeedsBrowser(ctx, "https://docs.cursor.com", fetcher("", errors.New("403")), fetcher(words(5), nil), passthrough))
	})

	t.Run("false when the browser fetch fails", func(t *testing.T) {
		t.Parallel()

		assert.False(t, crawl.NeedsBrowser(ctx, "https://zed.dev/docs", fetcher(words(5), nil), fetcher("", errors.New("chrome not found")), passthrough))
	})
}
