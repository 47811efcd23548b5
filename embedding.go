package idedocs

import "context"

// Embedder converts text into fixed-width vectors using an external provider.
type Embedder interface {
	// Embed returns one vector per input text, in input order. A provider
	// may return an empty vector for an input it could not embed.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedInput is a single text to embed, identified by the caller.
type EmbedInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// EmbedResult reports per-id outcomes of an embedding request.
// Succeeded and the keys of Failed partition the input ids.
type EmbedResult struct {
	Vectors   map[string][]float32 `json:"-"`
	Succeeded []string             `json:"succeeded"`
	Failed    map[string]string    `json:"failed,omitempty"` // id -> reason
}

// EmbeddingService embeds batches of texts with per-id failure reporting.
type EmbeddingService interface {
	GenerateEmbeddings(ctx context.Context, inputs []EmbedInput) (*EmbedResult, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
