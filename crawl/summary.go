package crawl

import (
	"fmt"
	"strings"
)

// TruncateURL shortens a URL for display to at most maxLen bytes, keeping
// its end.
func TruncateURL(url string, maxLen int) string {
	switch {
	case maxLen <= 0:
		return ""
	case len(url) <= maxLen:
		return url
	case maxLen < 4:
		return url[:maxLen]
	}
	return "..." + url[len(url)-maxLen+3:]
}

// Summary describes the outcome of a crawl in one line, omitting zero
// counts other than fetched pages.
func Summary(s *Stats) string {
	if s == nil {
		return "nothing crawled"
	}
	parts := []string{plural(s.Fetched, "page") + " fetched"}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.SkippedRobots > 0 {
		parts = append(parts, fmt.Sprintf("%d disallowed by robots.txt", s.SkippedRobots))
	}
	if s.SkippedPattern > 0 {
		parts = append(parts, fmt.Sprintf("%d outside allowed patterns", s.SkippedPattern))
	}
	parts = append(parts, plural(s.ChunksStored, "new chunk"))
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
