package crawl

import (
	"sync"

	"github.com/fwojciec/idedocs/bloom"
)

// Bloom prefilter sizing. A crawl discovers many more links than it
// fetches, so capacity is a multiple of the page budget.
const (
	linksPerPage              = 20
	minFrontierCapacity       = 1000
	frontierFalsePositiveRate = 0.01
)

// Link is a URL queued for crawling at a given depth.
type Link struct {
	URL   string // normalized
	Depth int
}

// Frontier is a FIFO queue of links with a visited-set keyed by normalized
// URL, so every URL is queued at most once however many pages link to it.
// It is safe for concurrent use by multiple goroutines.
type Frontier struct {
	mu     sync.Mutex
	filter *bloom.Filter
	seen   map[string]struct{}
	queue  []Link
}

// NewFrontier creates an empty Frontier for a crawl of up to maxPages pages.
func NewFrontier(maxPages int) *Frontier {
	capacity := max(maxPages*linksPerPage, minFrontierCapacity)
	return &Frontier{
		filter: bloom.NewFilter(uint(capacity), frontierFalsePositiveRate),
		seen:   make(map[string]struct{}),
	}
}

// Visit marks the URL as seen without queueing it.
// Returns false if the URL had already been seen.
func (f *Frontier) Visit(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visit(url)
}

// Push queues a link. Returns false if its URL has already been seen.
func (f *Frontier) Push(link Link) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.visit(link.URL) {
		return false
	}
	f.queue = append(f.queue, link)
	return true
}

func (f *Frontier) visit(url string) bool {
	// The Bloom filter has no false negatives: a miss means the URL is new
	// and the exact set only needs an insert.
	if f.filter.TestAndAdd(url) {
		if _, ok := f.seen[url]; ok {
			return false
		}
	}
	f.seen[url] = struct{}{}
	return true
}

// Pop returns the oldest queued link.
// The bool result is false if the frontier is empty.
func (f *Frontier) Pop() (Link, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Link{}, false
	}
	link := f.queue[0]
	f.queue[0] = Link{}
	f.queue = f.queue[1:]
	return link, true
}

// Len returns the number of queued links.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen returns true if the URL has been queued or visited.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}
