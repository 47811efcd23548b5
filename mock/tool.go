package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var _ idedocs.ToolService = (*ToolService)(nil)

// ToolService is a mock implementation of idedocs.ToolService.
type ToolService struct {
	CreateToolFn   func(ctx context.Context, tool *idedocs.Tool) error
	FindToolByIDFn func(ctx context.Context, id string) (*idedocs.Tool, error)
	FindToolsFn    func(ctx context.Context, filter idedocs.ToolFilter) ([]*idedocs.Tool, error)
	UpdateToolFn   func(ctx context.Context, id string, upd idedocs.ToolUpdate) (*idedocs.Tool, error)
	DeleteToolFn   func(ctx context.Context, id string) error
}

func (s *ToolService) CreateTool(ctx context.Context, tool *idedocs.Tool) error {
	return s.CreateToolFn(ctx, tool)
}

func (s *ToolService) FindToolByID(ctx context.Context, id string) (*idedocs.Tool, error) {
	return s.FindToolByIDFn(ctx, id)
}

func (s *ToolService) FindTools(ctx context.Context, filter idedocs.ToolFilter) ([]*idedocs.Tool, error) {
	return s.FindToolsFn(ctx, filter)
}

func (s *ToolService) UpdateTool(ctx context.Context, id string, upd idedocs.ToolUpdate) (*idedocs.Tool, error) {
	return s.UpdateToolFn(ctx, id, upd)
}

func (s *ToolService) DeleteTool(ctx context.Context, id string) error {
	return s.DeleteToolFn(ctx, id)
}
