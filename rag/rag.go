// Package rag retrieves the stored chunks most similar to a query and
// assembles them into a bounded prompt context.
package rag

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/idedocs"
)

// Retrieval defaults.
const (
	DefaultTopK          = 5
	DefaultThreshold     = 0.7
	DefaultContextBudget = 12000
)

// DefaultOptions returns the default retrieval options.
func DefaultOptions() idedocs.RetrieveOptions {
	return idedocs.RetrieveOptions{TopK: DefaultTopK, Threshold: DefaultThreshold}
}

var _ idedocs.Retriever = (*Retriever)(nil)

// Retriever implements idedocs.Retriever with brute-force cosine similarity
// over a tool's embedded chunks.
type Retriever struct {
	Embeddings idedocs.EmbeddingService
	Chunks     idedocs.ChunkService

	// ContextBudget bounds the assembled context in bytes.
	ContextBudget int
}

// NewRetriever returns a Retriever with the default context budget.
func NewRetriever(embeddings idedocs.EmbeddingService, chunks idedocs.ChunkService) *Retriever {
	return &Retriever{
		Embeddings:    embeddings,
		Chunks:        chunks,
		ContextBudget: DefaultContextBudget,
	}
}

// RetrieveAndAssemble embeds query, ranks the tool's chunks by cosine
// similarity and assembles the best of them into a context string. Only
// chunks included in the context are returned. A zero TopK means
// DefaultTopK.
func (r *Retriever) RetrieveAndAssemble(ctx context.Context, query, toolID string, opts idedocs.RetrieveOptions) (*idedocs.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "query required")
	}
	if toolID == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "tool ID required")
	}
	if opts.TopK < 0 {
		return nil, idedocs.Errorf(idedocs.EINVALID, "topK must not be negative")
	}
	if opts.TopK == 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Threshold < -1 || opts.Threshold > 1 {
		return nil, idedocs.Errorf(idedocs.EINVALID, "threshold must be within [-1, 1]")
	}

	qv, err := r.Embeddings.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	embedded := true
	chunks, err := r.Chunks.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &toolID, HasEmbedding: &embedded})
	if err != nil {
		return nil, err
	}

	ranked := Rank(qv, chunks, opts)
	results, text := Assemble(ranked, r.ContextBudget)
	return &idedocs.RetrievalResult{Results: results, Context: text}, nil
}

// Rank scores chunks against the query vector, drops those below the
// threshold and returns at most TopK results sorted by descending score.
// Ties go to the most recently created chunk, then to the smaller ID.
// Chunks whose embedding width differs from the query are ignored.
func Rank(query []float32, chunks []*idedocs.Chunk, opts idedocs.RetrieveOptions) []idedocs.RetrievedChunk {
	var ranked []idedocs.RetrievedChunk
	for _, ch := range chunks {
		score, ok := Cosine(query, ch.Embedding)
		if !ok || score < opts.Threshold {
			continue
		}
		ranked = append(ranked, idedocs.RetrievedChunk{Chunk: ch, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Chunk.CreatedAt.Equal(b.Chunk.CreatedAt) {
			return a.Chunk.CreatedAt.After(b.Chunk.CreatedAt)
		}
		return a.Chunk.ID < b.Chunk.ID
	})

	if opts.TopK > 0 && len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}
	return ranked
}

// Assemble concatenates ranked chunks as numbered sources until budget
// bytes are used. Lower-ranked chunks are dropped first; when the top chunk
// alone exceeds the budget it is truncated. A budget of zero means no
// limit. The returned results are those present in the context.
func Assemble(ranked []idedocs.RetrievedChunk, budget int) ([]idedocs.RetrievedChunk, string) {
	const sep = "\n\n"

	var b strings.Builder
	for i, rc := range ranked {
		entry := idedocs.FormatSource(i+1, rc.Chunk)
		if i > 0 {
			entry = sep + entry
		}
		if budget > 0 && b.Len()+len(entry) > budget {
			if i == 0 {
				b.WriteString(truncate(entry, budget))
				return ranked[:1], b.String()
			}
			return ranked[:i], b.String()
		}
		b.WriteString(entry)
	}
	return ranked, b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Cosine returns the cosine similarity of a and b. It reports false when
// the vectors differ in width or either has zero norm.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
