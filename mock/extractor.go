package mock

import "github.com/fwojciec/idedocs"

var _ idedocs.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of idedocs.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*idedocs.ExtractResult, error)
}

func (e *Extractor) Extract(html string) (*idedocs.ExtractResult, error) {
	return e.ExtractFn(html)
}
