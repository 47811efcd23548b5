package rod

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var _ idedocs.Fetcher = (*Fetcher)(nil)

// DefaultFetchTimeout bounds navigation plus rendering of a single page.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher retrieves rendered HTML from documentation sites that build
// their content with JavaScript. It is used in place of the plain HTTP
// fetcher when a crawl is started with the browser option.
//
// Fetcher is safe for concurrent use.
type Fetcher struct {
	manager   *BrowserManager
	timeout   time.Duration
	userAgent string
	settle    time.Duration

	managerOpts []ManagerOption
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the per-page render timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent overrides the browser's User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithSettle waits until the DOM stops changing for d after load. Zero
// disables the wait.
func WithSettle(d time.Duration) Option {
	return func(f *Fetcher) {
		f.settle = d
	}
}

// WithBrowser passes options to the BrowserManager NewFetcher launches.
func WithBrowser(opts ...ManagerOption) Option {
	return func(f *Fetcher) {
		f.managerOpts = append(f.managerOpts, opts...)
	}
}

// NewFetcher launches a managed headless browser. Close must be called
// when the Fetcher is no longer needed.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}
	bm, err := NewBrowserManager(f.managerOpts...)
	if err != nil {
		return nil, idedocs.Errorf(idedocs.ECONFIG, "browser unavailable: %v", err)
	}
	return NewFetcherWithManager(bm, opts...), nil
}

// NewFetcherWithManager renders pages on bm, which the Fetcher then owns.
func NewFetcherWithManager(bm *BrowserManager, opts ...Option) *Fetcher {
	f := &Fetcher{
		manager: bm,
		timeout: DefaultFetchTimeout,
		settle:  300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch navigates to url and returns the rendered HTML.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	browser, release, err := f.manager.Acquire()
	defer release()
	if err != nil {
		return "", idedocs.Errorf(idedocs.EINVALID, "%v", err)
	}

	rctx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	html, err := f.render(rctx, browser, url)
	if err == nil {
		return html, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return "", idedocs.Errorf(idedocs.EUNAVAILABLE, "render %s timed out", url)
	}
	return "", idedocs.Errorf(idedocs.EUNAVAILABLE, "render %s: %v", url, err)
}

func (f *Fetcher) render(ctx context.Context, browser *rod.Browser, url string) (string, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	page = page.Context(ctx)
	if f.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: f.userAgent}); err != nil {
			return "", err
		}
	}
	if err := page.Navigate(url); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}
	if f.settle > 0 {
		if err := page.WaitDOMStable(f.settle, 0); err != nil {
			return "", err
		}
	}
	return page.HTML()
}

// Close releases browser resources.
func (f *Fetcher) Close() error {
	return f.manager.Close()
}
