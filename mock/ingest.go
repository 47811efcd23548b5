package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var _ idedocs.IngestService = (*IngestService)(nil)

// IngestService is a mock implementation of idedocs.IngestService.
type IngestService struct {
	CreateIngestStatusFn     func(ctx context.Context, status *idedocs.IngestStatus) error
	FindIngestStatusByIDFn   func(ctx context.Context, id string) (*idedocs.IngestStatus, error)
	FindIngestStatusesFn     func(ctx context.Context, toolID string) ([]*idedocs.IngestStatus, error)
	TransitionIngestStatusFn func(ctx context.Context, id, owner string, tr idedocs.IngestTransition) (*idedocs.IngestStatus, error)
}

func (s *IngestService) CreateIngestStatus(ctx context.Context, status *idedocs.IngestStatus) error {
	return s.CreateIngestStatusFn(ctx, status)
}

func (s *IngestService) FindIngestStatusByID(ctx context.Context, id string) (*idedocs.IngestStatus, error) {
	return s.FindIngestStatusByIDFn(ctx, id)
}

func (s *IngestService) FindIngestStatuses(ctx context.Context, toolID string) ([]*idedocs.IngestStatus, error) {
	return s.FindIngestStatusesFn(ctx, toolID)
}

func (s *IngestService) TransitionIngestStatus(ctx context.Context, id, owner string, tr idedocs.IngestTransition) (*idedocs.IngestStatus, error) {
	return s.TransitionIngestStatusFn(ctx, id, owner, tr)
}
