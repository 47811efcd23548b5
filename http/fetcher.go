// Package http provides HTTP implementations of idedocs interfaces: a
// Fetcher for static documentation sites, sitemap discovery, and the chat
// and manifest request handler.
package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// maxPageBytes bounds the size of a fetched page.
const maxPageBytes = 10 << 20

// Ensure Fetcher implements idedocs.Fetcher at compile time.
var _ idedocs.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves HTML content from URLs using HTTP requests.
// Unlike rod.Fetcher, this does not execute JavaScript and is suitable
// for static sites only.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch retrieves the HTML content from the given URL.
//
// Failures are classified for retry: 429 is ERATELIMIT with the server's
// Retry-After hint, 5xx and network errors are EUNAVAILABLE, 404 and 410
// are ENOTFOUND and other statuses are EINVALID. Responses that are not
// HTML, such as PDFs and images linked from a docs page, are EINVALID.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", idedocs.Errorf(idedocs.EINVALID, "invalid URL %q: %v", url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return "", ctxErr
		}
		return "", idedocs.Errorf(idedocs.EUNAVAILABLE, "fetch %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := StatusError(resp, url); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", idedocs.Errorf(idedocs.EUNAVAILABLE, "read %s: %v", url, err)
	}
	if !isHTML(resp.Header.Get("Content-Type"), body) {
		return "", idedocs.Errorf(idedocs.EINVALID, "%s is not an HTML page", url)
	}

	return string(body), nil
}

// Close is a no-op.
func (f *Fetcher) Close() error {
	return nil
}

// isHTML trusts a declared Content-Type and sniffs the body otherwise.
func isHTML(contentType string, body []byte) bool {
	if contentType != "" {
		if media, _, err := mime.ParseMediaType(contentType); err == nil {
			return media == "text/html" || media == "application/xhtml+xml"
		}
	}
	m := mimetype.Detect(body)
	return m.Is("text/html") || m.Is("application/xhtml+xml")
}

// StatusError converts a non-200 response into an application error.
// Returns nil for 200 OK.
func StatusError(resp *http.Response, url string) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return idedocs.RateLimited(ParseRetryAfter(resp.Header.Get("Retry-After")), "HTTP %d for %s", code, url)
	case code == http.StatusNotFound || code == http.StatusGone:
		return idedocs.Errorf(idedocs.ENOTFOUND, "HTTP %d for %s", code, url)
	case code >= 500 || code == http.StatusRequestTimeout:
		return idedocs.Errorf(idedocs.EUNAVAILABLE, "HTTP %d for %s", code, url)
	default:
		return idedocs.Errorf(idedocs.EINVALID, "HTTP %d for %s", code, url)
	}
}

// ParseRetryAfter reads a Retry-After header value in either the
// delay-seconds or the HTTP-date form. Unparseable values yield zero.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
