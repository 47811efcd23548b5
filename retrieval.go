package idedocs

import "context"

// RetrieveOptions configures a retrieval. A zero TopK selects the
// retriever's default of five results; a negative one is EINVALID.
type RetrieveOptions struct {
	TopK      int     `json:"topK"`
	Threshold float64 `json:"threshold"` // minimum cosine similarity
}

// RetrievedChunk is a chunk with its similarity to the query.
type RetrievedChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult holds ranked chunks and the context assembled from them.
// Results are sorted by descending score.
type RetrievalResult struct {
	Results []RetrievedChunk `json:"results"`
	Context string           `json:"context"`
}

// Sources returns citation entries for the results included in Context,
// linking to the section each chunk came from.
func (r *RetrievalResult) Sources() []Source {
	sources := make([]Source, 0, len(r.Results))
	for i, rc := range r.Results {
		sources = append(sources, Source{
			Index:   i + 1,
			URL:     SectionURL(rc.Chunk.SourceURL, rc.Chunk.Section),
			Section: rc.Chunk.Section,
			Score:   rc.Score,
		})
	}
	return sources
}

// Retriever finds the chunks of a tool most relevant to a query.
type Retriever interface {
	RetrieveAndAssemble(ctx context.Context, query, toolID string, opts RetrieveOptions) (*RetrievalResult, error)
}
