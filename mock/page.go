package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var _ idedocs.PageHandler = (*PageHandler)(nil)

// PageHandler is a mock implementation of idedocs.PageHandler.
type PageHandler struct {
	HandlePageFn func(ctx context.Context, page *idedocs.Page) (int, error)
}

func (h *PageHandler) HandlePage(ctx context.Context, page *idedocs.Page) (int, error) {
	return h.HandlePageFn(ctx, page)
}

var _ idedocs.PageStore = (*PageStore)(nil)

// PageStore is a mock implementation of idedocs.PageStore.
type PageStore struct {
	SaveFn   func(ctx context.Context, page *idedocs.Page) error
	CommitFn func() error
	AbortFn  func() error
}

func (s *PageStore) Save(ctx context.Context, page *idedocs.Page) error {
	return s.SaveFn(ctx, page)
}

func (s *PageStore) Commit() error {
	return s.CommitFn()
}

func (s *PageStore) Abort() error {
	return s.AbortFn()
}
