package idedocs

import "context"

// SitemapService lists documentation URLs a site publishes in its sitemaps.
type SitemapService interface {
	// DiscoverURLs returns the sitemap URLs on baseURL's host whose path
	// falls under baseURL's path, most recently modified first. A site
	// without sitemaps yields an empty slice.
	DiscoverURLs(ctx context.Context, baseURL string) ([]string, error)
}
