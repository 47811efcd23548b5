package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/fwojciec/idedocs"
	"github.com/temoto/robotstxt"
)

const (
	maxSitemapBytes = 50 << 20
	maxIndexDepth   = 3
)

// DefaultMaxSitemapURLs caps the URLs returned for one site.
const DefaultMaxSitemapURLs = 50000

var _ idedocs.SitemapService = (*SitemapService)(nil)

// SitemapService reads sitemaps over HTTP. Locations come from the Sitemap
// lines of robots.txt, falling back to /sitemap.xml. Sitemap indexes are
// followed up to three levels and gzip-compressed sitemaps are accepted.
type SitemapService struct {
	client *http.Client

	// MaxURLs caps the result after sorting. Zero means DefaultMaxSitemapURLs.
	MaxURLs int
}

// NewSitemapService returns a SitemapService using client, or
// http.DefaultClient when client is nil.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = http.DefaultClient
	}
	return &SitemapService{client: client}
}

type sitemapEntry struct {
	loc     string
	lastmod time.Time
}

// DiscoverURLs implements idedocs.SitemapService. Sitemaps that cannot be
// fetched or parsed are skipped; only an invalid baseURL or a cancelled
// context fail the call.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "invalid base URL %q", baseURL)
	}
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}
	prefix := strings.TrimSuffix(base.Path, "/") + "/"

	type location struct {
		loc   string
		depth int
	}
	var queue []location
	for _, loc := range s.locations(ctx, origin) {
		queue = append(queue, location{loc: loc})
	}

	visited := make(map[string]bool)
	seen := make(map[string]bool)
	var entries []sitemapEntry
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := queue[0]
		queue = queue[1:]
		if visited[next.loc] {
			continue
		}
		visited[next.loc] = true

		root, err := s.fetchXML(ctx, next.loc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if root.Tag == "sitemapindex" {
			if next.depth >= maxIndexDepth {
				continue
			}
			for _, e := range readEntries(root, "sitemap") {
				queue = append(queue, location{loc: e.loc, depth: next.depth + 1})
			}
			continue
		}
		for _, e := range readEntries(root, "url") {
			if seen[e.loc] || !inScope(e.loc, origin.Host, prefix) {
				continue
			}
			seen[e.loc] = true
			entries = append(entries, e)
		}
	}

	// Undated entries sort last, keeping sitemap order among equals.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].lastmod.After(entries[j].lastmod)
	})
	limit := s.MaxURLs
	if limit <= 0 {
		limit = DefaultMaxSitemapURLs
	}
	urls := make([]string, 0, min(len(entries), limit))
	for _, e := range entries {
		if len(urls) == limit {
			break
		}
		urls = append(urls, e.loc)
	}
	return urls, nil
}

// locations returns the sitemap URLs declared in robots.txt, or the
// conventional /sitemap.xml when robots.txt names none.
func (s *SitemapService) locations(ctx context.Context, origin *url.URL) []string {
	robotsURL := origin.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	if body, err := s.get(ctx, robotsURL); err == nil {
		if robots, err := robotstxt.FromBytes(body); err == nil && len(robots.Sitemaps) > 0 {
			return robots.Sitemaps
		}
	}
	return []string{origin.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()}
}

func (s *SitemapService) fetchXML(ctx context.Context, loc string) (*etree.Element, error) {
	body, err := s.get(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("sitemap %s: %w", loc, err)
		}
		body, err = io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
		if err != nil {
			return nil, fmt.Errorf("sitemap %s: %w", loc, err)
		}
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("sitemap %s: %w", loc, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("sitemap %s: empty document", loc)
	}
	return root, nil
}

func (s *SitemapService) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, target)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
}

// readEntries collects the <loc> and <lastmod> of each child element named tag.
func readEntries(root *etree.Element, tag string) []sitemapEntry {
	var entries []sitemapEntry
	for _, el := range root.SelectElements(tag) {
		loc := el.SelectElement("loc")
		if loc == nil {
			continue
		}
		e := sitemapEntry{loc: strings.TrimSpace(loc.Text())}
		if e.loc == "" {
			continue
		}
		if lm := el.SelectElement("lastmod"); lm != nil {
			e.lastmod = parseLastmod(strings.TrimSpace(lm.Text()))
		}
		entries = append(entries, e)
	}
	return entries
}

// parseLastmod accepts the W3C datetime forms sitemaps use. Unparseable
// values are treated as absent.
func parseLastmod(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// inScope reports whether raw is on host and its path is under prefix,
// which ends with a slash. The prefix directory itself is in scope.
func inScope(raw, host, prefix string) bool {
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Host, host) {
		return false
	}
	if prefix == "/" {
		return true
	}
	p := u.Path
	return strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/")
}
