// Package trafilatura isolates the main content of documentation pages
// with go-trafilatura.
package trafilatura

import (
	"bytes"
	"strings"

	"github.com/fwojciec/idedocs"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var _ idedocs.Extractor = (*Extractor)(nil)

// Extractor strips navigation, footers and other boilerplate from
// documentation pages before conversion. Reference pages are mostly
// tables and code, so extraction favors recall and keeps links.
type Extractor struct {
	// Precise switches to precision-first extraction for sites whose
	// sidebars leak into the content.
	Precise bool
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content. A page from
// which no main content can be isolated yields an empty ContentHTML and
// no error; the caller decides whether that is a failure.
func (e *Extractor) Extract(rawHTML string) (*idedocs.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		Focus:           trafilatura.FavorRecall,
		IncludeLinks:    true,
		ExcludeComments: true,
	}
	if e.Precise {
		opts.Focus = trafilatura.FavorPrecision
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return nil, idedocs.Errorf(idedocs.EINVALID, "extract main content: %v", err)
	}

	out := &idedocs.ExtractResult{Title: strings.TrimSpace(result.Metadata.Title)}
	if result.ContentNode == nil {
		return out, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, result.ContentNode); err != nil {
		return nil, idedocs.Errorf(idedocs.EINTERNAL, "render content: %v", err)
	}
	out.ContentHTML = buf.String()
	if out.Title == "" {
		out.Title = firstHeading(result.ContentNode)
	}
	return out, nil
}

// firstHeading returns the text of the first h1 under n, or "".
func firstHeading(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.H1 {
		return strings.Join(strings.Fields(text(n)), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if h := firstHeading(c); h != "" {
			return h
		}
	}
	return ""
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(text(c))
	}
	return sb.String()
}
