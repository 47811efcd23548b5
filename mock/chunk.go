package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var _ idedocs.ChunkService = (*ChunkService)(nil)

// ChunkService is a mock implementation of idedocs.ChunkService.
type ChunkService struct {
	UpsertChunksFn       func(ctx context.Context, chunks []*idedocs.Chunk) (int, error)
	FindChunkByIDFn      func(ctx context.Context, id string) (*idedocs.Chunk, error)
	FindChunksFn         func(ctx context.Context, filter idedocs.ChunkFilter) ([]*idedocs.Chunk, error)
	AttachEmbeddingFn    func(ctx context.Context, id string, embedding []float32) error
	DeleteChunksByToolFn func(ctx context.Context, toolID string) error
}

func (s *ChunkService) UpsertChunks(ctx context.Context, chunks []*idedocs.Chunk) (int, error) {
	return s.UpsertChunksFn(ctx, chunks)
}

func (s *ChunkService) FindChunkByID(ctx context.Context, id string) (*idedocs.Chunk, error) {
	return s.FindChunkByIDFn(ctx, id)
}

func (s *ChunkService) FindChunks(ctx context.Context, filter idedocs.ChunkFilter) ([]*idedocs.Chunk, error) {
	return s.FindChunksFn(ctx, filter)
}

func (s *ChunkService) AttachEmbedding(ctx context.Context, id string, embedding []float32) error {
	return s.AttachEmbeddingFn(ctx, id, embedding)
}

func (s *ChunkService) DeleteChunksByTool(ctx context.Context, toolID string) error {
	return s.DeleteChunksByToolFn(ctx, toolID)
}
