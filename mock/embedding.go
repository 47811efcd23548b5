package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var (
	_ idedocs.Embedder         = (*Embedder)(nil)
	_ idedocs.EmbeddingService = (*EmbeddingService)(nil)
)

// Embedder is a mock implementation of idedocs.Embedder.
type Embedder struct {
	EmbedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedFn(ctx, texts)
}

// EmbeddingService is a mock implementation of idedocs.EmbeddingService.
type EmbeddingService struct {
	GenerateEmbeddingsFn func(ctx context.Context, inputs []idedocs.EmbedInput) (*idedocs.EmbedResult, error)
	EmbedQueryFn         func(ctx context.Context, text string) ([]float32, error)
}

func (s *EmbeddingService) GenerateEmbeddings(ctx context.Context, inputs []idedocs.EmbedInput) (*idedocs.EmbedResult, error) {
	return s.GenerateEmbeddingsFn(ctx, inputs)
}

func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.EmbedQueryFn(ctx, text)
}
