package gemini

import (
	"context"

	"github.com/fwojciec/idedocs"
	"google.golang.org/genai"
)

var _ idedocs.Embedder = (*Embedder)(nil)

// Embedder implements idedocs.Embedder with the Gemini embedding API.
type Embedder struct {
	client *genai.Client

	Model string

	// TaskType tunes vectors for their use, e.g. RETRIEVAL_DOCUMENT.
	TaskType string

	// Dimensions truncates vectors when positive.
	Dimensions int32
}

// NewEmbedder returns an Embedder using DefaultEmbeddingModel.
func NewEmbedder(client *genai.Client) *Embedder {
	return &Embedder{
		client:   client,
		Model:    DefaultEmbeddingModel,
		TaskType: "RETRIEVAL_DOCUMENT",
	}
}

// Embed returns one vector per text in a single batch request.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	config := &genai.EmbedContentConfig{TaskType: e.TaskType}
	if e.Dimensions > 0 {
		config.OutputDimensionality = &e.Dimensions
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.Model, contents, config)
	if err != nil {
		return nil, translate(err, "embed")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, idedocs.Errorf(idedocs.EINTERNAL, "gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb != nil {
			vectors[i] = emb.Values
		}
	}
	return vectors, nil
}
