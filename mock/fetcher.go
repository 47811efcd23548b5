package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var (
	_ idedocs.Fetcher       = (*Fetcher)(nil)
	_ idedocs.LinkExtractor = (*LinkExtractor)(nil)
)

// Fetcher is a mock implementation of idedocs.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

// LinkExtractor is a mock implementation of idedocs.LinkExtractor.
type LinkExtractor struct {
	ExtractLinksFn func(html string, baseURL string) ([]string, error)
}

func (e *LinkExtractor) ExtractLinks(html string, baseURL string) ([]string, error) {
	return e.ExtractLinksFn(html, baseURL)
}
