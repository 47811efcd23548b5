package idedocs

import "context"

// Fetcher retrieves HTML from URLs.
// Implementations may use browser automation to handle JavaScript-rendered content.
type Fetcher interface {
	// Fetch retrieves the HTML at url. The context controls timeout and
	// cancellation. Transient failures are reported as EUNAVAILABLE or
	// ERATELIMIT; a missing page as ENOTFOUND.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases resources.
	// Must be called when the Fetcher is no longer needed.
	Close() error
}

// LinkExtractor discovers outgoing links in an HTML page.
type LinkExtractor interface {
	// ExtractLinks parses HTML and returns absolute URLs on the same host as
	// baseURL, in document order, without duplicates or fragments.
	ExtractLinks(html string, baseURL string) ([]string, error)
}
