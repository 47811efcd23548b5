// Package goquery implements link discovery on documentation pages using
// goquery CSS selectors.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/idedocs"
)

var _ idedocs.LinkExtractor = (*LinkExtractor)(nil)

// defaultSelectors lists link areas from most to least useful for
// breadth-first discovery. Links are reported in this order, and in
// document order within each area.
var defaultSelectors = []string{
	// Table of contents and sidebars
	".toc a[href], .sidebar a[href], .table-of-contents a[href], aside a[href]",
	// Navigation
	`nav a[href], [role="navigation"] a[href], .nav a[href], .menu a[href], .navbar a[href]`,
	// Content
	"main a[href], article a[href], .content a[href], .doc-content a[href]",
	// Everything else, including footers
	"a[href]",
}

// LinkExtractor extracts same-host links from HTML.
type LinkExtractor struct {
	// Selectors overrides the link areas searched, in priority order.
	Selectors []string
}

// NewLinkExtractor creates a LinkExtractor with the default selectors.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{Selectors: defaultSelectors}
}

// ExtractLinks parses HTML and returns absolute links on the same host as
// baseURL. Fragments are stripped, duplicates and self-links are dropped,
// and non-HTTP links (javascript:, mailto:, etc.) are skipped.
func (e *LinkExtractor) ExtractLinks(html string, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, idedocs.Errorf(idedocs.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, idedocs.Errorf(idedocs.EINVALID, "failed to parse HTML: %v", err)
	}

	page := stripFragment(*base).String()

	// <base href> changes how relative links resolve.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(href); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	selectors := e.Selectors
	if len(selectors) == 0 {
		selectors = defaultSelectors
	}

	seen := map[string]bool{page: true}
	var links []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if rel, _ := sel.Attr("rel"); strings.Contains(rel, "nofollow") {
				return
			}
			href, _ := sel.Attr("href")
			link, ok := follow(base, href)
			if !ok || seen[link] {
				return
			}
			seen[link] = true
			links = append(links, link)
		})
	}

	return links, nil
}

// follow resolves href against base. It reports false for empty hrefs,
// schemes other than http(s), unparseable references and other hosts.
// Subdomains count as other hosts.
func follow(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := stripFragment(*base.ResolveReference(ref))
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	return u.String(), true
}

func stripFragment(u url.URL) *url.URL {
	u.Fragment = ""
	u.RawFragment = ""
	return &u
}
