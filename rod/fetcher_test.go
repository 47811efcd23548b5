//go:build integration

package rod_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns JavaScript rendered HTML", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<!DOCTYPE html>
<html><head><title>Shortcuts</title></head>
<body>
<div id="content">Loading...</div>
<script>document.getElementById('content').textContent = 'Keyboard shortcuts';</script>
</body></html>`))
		}))
		defer srv.Close()

		f, err := rod.NewFetcher(rod.WithSettle(0))
		require.NoError(t, err)
		defer f.Close()

		html, err := f.Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.Contains(t, html, "Keyboard shortcuts")
		assert.NotContains(t, html, "Loading...")
	})

	t.Run("sends the configured user agent", func(t *testing.T) {
		t.Parallel()

		got := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case got <- r.UserAgent():
			default:
			}
			_, _ = w.Write([]byte(`<html><body>ok</body></html>`))
		}))
		defer srv.Close()

		f, err := rod.NewFetcher(rod.WithUserAgent("idedocs-test"), rod.WithSettle(0))
		require.NoError(t, err)
		defer f.Close()

		_, err = f.Fetch(context.Background(), srv.URL)

		require.NoError(t, err)
		assert.Equal(t, "idedocs-test", <-got)
	})

	t.Run("maps slow pages to EUNAVAILABLE", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte(`<html><body>late</body></html>`))
		}))
		defer srv.Close()

		f, err := rod.NewFetcher(rod.WithFetchTimeout(100 * time.Millisecond))
		require.NoError(t, err)
		defer f.Close()

		_, err = f.Fetch(context.Background(), srv.URL)

		require.Error(t, err)
		assert.Equal(t, idedocs.EUNAVAILABLE, idedocs.ErrorCode(err))
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		t.Parallel()

		f, err := rod.NewFetcher()
		require.NoError(t, err)
		defer f.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = f.Fetch(ctx, "http://127.0.0.1:1")

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("returns EINVALID after close", func(t *testing.T) {
		t.Parallel()

		f, err := rod.NewFetcher()
		require.NoError(t, err)
		require.NoError(t, f.Close())

		_, err = f.Fetch(context.Background(), "http://example.com")

		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})
}
