// Package bloom provides a probabilistic prefilter for crawl visited-sets.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter answers "possibly seen" for normalized URLs. A miss is exact, so
// callers only consult their exact set on a hit. Not safe for concurrent
// use; the crawl frontier guards it with its own lock.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter sizes a filter for n URLs at the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{f: bloom.NewWithEstimates(n, fpRate)}
}

// TestAndAdd records url and reports whether it may have been recorded
// before.
func (f *Filter) TestAndAdd(url string) bool {
	return f.f.TestAndAddString(url)
}
