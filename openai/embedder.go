package openai

import (
	"context"

	"github.com/fwojciec/idedocs"
	"github.com/openai/openai-go"
)

var _ idedocs.Embedder = (*Embedder)(nil)

// Embedder implements idedocs.Embedder with the OpenAI embeddings endpoint.
type Embedder struct {
	client *openai.Client

	Model openai.EmbeddingModel

	// Dimensions shortens vectors when positive.
	Dimensions int64
}

// NewEmbedder returns an Embedder using DefaultEmbeddingModel.
func NewEmbedder(client *openai.Client) *Embedder {
	return &Embedder{client: client, Model: DefaultEmbeddingModel}
}

// Embed returns one vector per text. Results are placed by the index the
// API reports, not by response order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: e.Model,
	}
	if e.Dimensions > 0 {
		params.Dimensions = openai.Int(e.Dimensions)
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, translate(err, "embed")
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, idedocs.Errorf(idedocs.EINTERNAL, "openai returned embedding index %d for %d texts", d.Index, len(texts))
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}
