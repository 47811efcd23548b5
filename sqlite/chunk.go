package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ idedocs.ChunkService = (*ChunkService)(nil)

// ChunkService implements idedocs.ChunkService using SQLite. Embeddings are
// stored as little-endian float32 blobs.
type ChunkService struct {
	db *DB
}

// NewChunkService creates a new ChunkService.
func NewChunkService(db *DB) *ChunkService {
	return &ChunkService{db: db}
}

const chunkColumns = "id, tool_id, content, section, source_url, doc_version, content_hash, position, embedding, created_at"

// UpsertChunks inserts chunks that are not yet stored. The whole batch is
// written in one transaction.
//
// A chunk already stored under another version is left as is and recorded
// as part of the new version's release, so FindChunks for that version
// still returns it.
func (s *ChunkService) UpsertChunks(ctx context.Context, chunks []*idedocs.Chunk) (int, error) {
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return 0, err
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, tool_id, content, section, source_url, doc_version, content_hash, position, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tool_id, source_url, content_hash) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	release, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO chunk_releases (chunk_id, doc_version)
		SELECT id, ? FROM chunks WHERE tool_id = ? AND source_url = ? AND content_hash = ? AND doc_version <> ?
	`)
	if err != nil {
		return 0, err
	}
	defer release.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.ContentHash == "" {
			c.ContentHash = idedocs.HashContent(c.Content)
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		result, err := stmt.ExecContext(ctx, c.ID, c.ToolID, c.Content, c.Section, c.SourceURL, c.DocVersion,
			c.ContentHash, c.Position, encodeEmbedding(c.Embedding), formatTime(c.CreatedAt))
		if err != nil {
			return 0, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
		if n == 0 && c.DocVersion != "" {
			if _, err := release.ExecContext(ctx, c.DocVersion, c.ToolID, c.SourceURL, c.ContentHash, c.DocVersion); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// FindChunkByID retrieves a chunk by ID.
func (s *ChunkService) FindChunkByID(ctx context.Context, id string) (*idedocs.Chunk, error) {
	c, err := scanChunk(s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, idedocs.Errorf(idedocs.ENOTFOUND, "chunk not found")
	}
	return c, err
}

// FindChunks retrieves chunks matching the filter, in source order.
func (s *ChunkService) FindChunks(ctx context.Context, filter idedocs.ChunkFilter) ([]*idedocs.Chunk, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + chunkColumns + " FROM chunks WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.ToolID != nil {
		query.WriteString(" AND tool_id = ?")
		args = append(args, *filter.ToolID)
	}
	if filter.SourceURL != nil {
		query.WriteString(" AND source_url = ?")
		args = append(args, *filter.SourceURL)
	}
	if filter.DocVersion != nil {
		query.WriteString(" AND (doc_version = ? OR id IN (SELECT chunk_id FROM chunk_releases WHERE doc_version = ?))")
		args = append(args, *filter.DocVersion, *filter.DocVersion)
	}
	if filter.HasEmbedding != nil {
		if *filter.HasEmbedding {
			query.WriteString(" AND embedding IS NOT NULL")
		} else {
			query.WriteString(" AND embedding IS NULL")
		}
	}

	query.WriteString(" ORDER BY source_url ASC, position ASC, id ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*idedocs.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		// Chunks carried over from an earlier release are reported under
		// the requested one.
		if filter.DocVersion != nil {
			c.DocVersion = *filter.DocVersion
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// AttachEmbedding sets the embedding vector of a chunk.
func (s *ChunkService) AttachEmbedding(ctx context.Context, id string, embedding []float32) error {
	if len(embedding) == 0 {
		return idedocs.Errorf(idedocs.EINVALID, "embedding must not be empty")
	}

	result, err := s.db.ExecContext(ctx, "UPDATE chunks SET embedding = ? WHERE id = ?", encodeEmbedding(embedding), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return idedocs.Errorf(idedocs.ENOTFOUND, "chunk not found")
	}

	return nil
}

// DeleteChunksByTool removes all chunks for a tool.
func (s *ChunkService) DeleteChunksByTool(ctx context.Context, toolID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE tool_id = ?", toolID)
	return err
}

func scanChunk(row scanner) (*idedocs.Chunk, error) {
	var c idedocs.Chunk
	var embedding []byte
	var createdAt string

	if err := row.Scan(&c.ID, &c.ToolID, &c.Content, &c.Section, &c.SourceURL, &c.DocVersion,
		&c.ContentHash, &c.Position, &embedding, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if c.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &c, nil
}
