package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var (
	_ idedocs.FormatDetector = (*FormatDetector)(nil)
	_ idedocs.Classifier     = (*Classifier)(nil)
)

// FormatDetector is a mock implementation of idedocs.FormatDetector.
type FormatDetector struct {
	DetectFormatFn func(ctx context.Context, toolID, sample string) (*idedocs.FormatDetectionResult, error)
}

func (d *FormatDetector) DetectFormat(ctx context.Context, toolID, sample string) (*idedocs.FormatDetectionResult, error) {
	return d.DetectFormatFn(ctx, toolID, sample)
}

// Classifier is a mock implementation of idedocs.Classifier.
type Classifier struct {
	ClassifyFn func(ctx context.Context, toolID, sample string) (*idedocs.FormatDetectionResult, error)
}

func (c *Classifier) Classify(ctx context.Context, toolID, sample string) (*idedocs.FormatDetectionResult, error) {
	return c.ClassifyFn(ctx, toolID, sample)
}
