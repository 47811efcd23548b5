package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var _ idedocs.ManifestService = (*ManifestService)(nil)

// ManifestService is a mock implementation of idedocs.ManifestService.
type ManifestService struct {
	SaveManifestFn func(ctx context.Context, m *idedocs.IDEManifest) error
	FindManifestFn func(ctx context.Context, toolID string) (*idedocs.IDEManifest, error)
}

func (s *ManifestService) SaveManifest(ctx context.Context, m *idedocs.IDEManifest) error {
	return s.SaveManifestFn(ctx, m)
}

func (s *ManifestService) FindManifest(ctx context.Context, toolID string) (*idedocs.IDEManifest, error) {
	return s.FindManifestFn(ctx, toolID)
}
