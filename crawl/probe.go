package crawl

import (
	"context"
	"strings"

	"github.com/fwojciec/idedocs"
)

// renderGain is the factor by which rendered main content must outgrow
// the static one before a site counts as JavaScript-rendered.
const renderGain = 1.5

// RenderingAddsContent reports whether renderedHTML carries substantially
// more main content than staticHTML, measured in words of extracted
// content. Extraction failures count as needing a browser.
func RenderingAddsContent(staticHTML, renderedHTML string, extractor idedocs.Extractor) bool {
	static, err := contentWords(staticHTML, extractor)
	if err != nil {
		return true
	}
	rendered, err := contentWords(renderedHTML, extractor)
	if err != nil {
		return true
	}
	if static == 0 {
		return rendered > 0
	}
	return float64(rendered) > float64(static)*renderGain
}

func contentWords(html string, extractor idedocs.Extractor) (int, error) {
	res, err := extractor.Extract(html)
	if err != nil {
		return 0, err
	}
	return len(strings.Fields(res.ContentHTML)), nil
}

// NeedsBrowser fetches url with both fetchers and reports whether the site
// renders its documentation with JavaScript. A failing plain fetch means the
// browser is needed; a failing browser fetch means it cannot help.
func NeedsBrowser(ctx context.Context, url string, plain, browser idedocs.Fetcher, extractor idedocs.Extractor) bool {
	staticHTML, err := plain.Fetch(ctx, url)
	if err != nil {
		return true
	}
	renderedHTML, err := browser.Fetch(ctx, url)
	if err != nil {
		return false
	}
	return RenderingAddsContent(staticHTML, renderedHTML, extractor)
}
