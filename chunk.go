package idedocs

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Chunk represents a section of a documentation page sized for embedding and
// retrieval. Stored chunks are only ever mutated to attach an embedding.
type Chunk struct {
	ID          string    `json:"id"`
	ToolID      string    `json:"toolId"`
	Content     string    `json:"content"`
	Section     string    `json:"section,omitempty"` // heading breadcrumb, "Guide > Install"
	SourceURL   string    `json:"sourceUrl"`
	DocVersion  string    `json:"docVersion,omitempty"`
	ContentHash string    `json:"contentHash"`
	Position    int       `json:"position"`
	Embedding   []float32 `json:"embedding,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate returns an error if the chunk contains invalid fields.
func (c *Chunk) Validate() error {
	if c.ToolID == "" {
		return Errorf(EINVALID, "chunk tool ID required")
	}
	if c.SourceURL == "" {
		return Errorf(EINVALID, "chunk source URL required")
	}
	if strings.TrimSpace(c.Content) == "" {
		return Errorf(EINVALID, "chunk content required")
	}
	return nil
}

// HashContent returns the hash used for chunk deduplication. Whitespace is
// normalized first so reformatted but identical text hashes the same.
func HashContent(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	return strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}

// ChunkService represents a service for managing chunks.
type ChunkService interface {
	// UpsertChunks stores chunks keyed by (tool ID, source URL, content hash).
	// Chunks that already exist are left untouched. Returns the number of
	// chunks inserted.
	UpsertChunks(ctx context.Context, chunks []*Chunk) (int, error)

	// FindChunkByID retrieves a chunk by ID.
	// Returns ENOTFOUND if chunk does not exist.
	FindChunkByID(ctx context.Context, id string) (*Chunk, error)

	// FindChunks retrieves chunks matching the filter.
	FindChunks(ctx context.Context, filter ChunkFilter) ([]*Chunk, error)

	// AttachEmbedding sets the embedding vector of a chunk.
	// Returns ENOTFOUND if chunk does not exist.
	AttachEmbedding(ctx context.Context, id string, embedding []float32) error

	// DeleteChunksByTool removes all chunks for a tool.
	DeleteChunksByTool(ctx context.Context, toolID string) error
}

// ChunkFilter represents a filter for FindChunks.
type ChunkFilter struct {
	ID         *string `json:"id"`
	ToolID     *string `json:"toolId"`
	SourceURL  *string `json:"sourceUrl"`

	// DocVersion selects the chunks of a release: those first stored under
	// it and those an upsert under it found already stored. Matches are
	// reported with this version.
	DocVersion *string `json:"docVersion"`

	// HasEmbedding restricts results to chunks with (true) or without
	// (false) an embedding.
	HasEmbedding *bool `json:"hasEmbedding"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}
