package idedocs

import "context"

// PageStatus is the outcome of visiting a URL during a crawl.
type PageStatus string

// Page statuses.
const (
	PageOK             PageStatus = "ok"
	PageFailed         PageStatus = "failed"
	PageSkippedRobots  PageStatus = "skipped_robots"
	PageSkippedPattern PageStatus = "skipped_pattern"
)

// Page represents a visited documentation page.
type Page struct {
	ToolID  string     `json:"toolId"`
	URL     string     `json:"url"` // normalized
	Title   string     `json:"title,omitempty"`
	Content string     `json:"content,omitempty"` // Markdown
	Depth   int        `json:"depth"`
	Status  PageStatus `json:"status"`
	Err     error      `json:"-"`
}

// PageHandler consumes pages as a crawl produces them.
type PageHandler interface {
	// HandlePage processes a successfully fetched page and returns the
	// number of chunks it stored.
	HandlePage(ctx context.Context, page *Page) (int, error)
}

// PageHandlerFunc adapts a function to the PageHandler interface.
type PageHandlerFunc func(ctx context.Context, page *Page) (int, error)

// HandlePage calls fn(ctx, page).
func (fn PageHandlerFunc) HandlePage(ctx context.Context, page *Page) (int, error) {
	return fn(ctx, page)
}

// PageStore keeps a copy of crawled pages outside the chunk store. Saved
// pages become visible together on Commit; Abort discards them.
type PageStore interface {
	Save(ctx context.Context, page *Page) error
	Commit() error
	Abort() error
}
