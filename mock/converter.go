package mock

import "github.com/fwojciec/idedocs"

var _ idedocs.Converter = (*Converter)(nil)

// Converter is a mock implementation of idedocs.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
