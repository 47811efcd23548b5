package sqlite_test

import (
	"context"
	"testing"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkService_UpsertChunks(t *testing.T) {
	t.Parallel()

	t.Run("skips chunks already stored for the same page", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewChunkService(db)
		ctx := context.Background()
		tool := createTool(t, db, "zed")

		first := []*idedocs.Chunk{
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/a", Content: "Open the command palette."},
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/a", Content: "Press cmd-shift-p.", Position: 1},
		}
		n, err := svc.UpsertChunks(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		again := []*idedocs.Chunk{
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/a", Content: "Open  the command\npalette."},
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/b", Content: "Open the command palette."},
		}
		n, err = svc.UpsertChunks(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "whitespace-only changes hash the same")

		all, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &tool.ID})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("rejects invalid chunks before writing", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewChunkService(db)
		ctx := context.Background()
		tool := createTool(t, db, "zed")

		_, err := svc.UpsertChunks(ctx, []*idedocs.Chunk{
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs", Content: "ok"},
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs", Content: "   "},
		})

		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
		all, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &tool.ID})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("keeps caller supplied IDs", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewChunkService(db)
		ctx := context.Background()
		tool := createTool(t, db, "zed")

		_, err := svc.UpsertChunks(ctx, []*idedocs.Chunk{{ID: "c-1", ToolID: tool.ID, SourceURL: "https://zed.dev/docs", Content: "Hello."}})
		require.NoError(t, err)

		found, err := svc.FindChunkByID(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, idedocs.HashContent("Hello."), found.ContentHash)
	})
}

func TestChunkService_AttachEmbedding(t *testing.T) {
	t.Parallel()

	t.Run("stores the vector exactly", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewChunkService(db)
		ctx := context.Background()
		tool := createTool(t, db, "zed")
		_, err := svc.UpsertChunks(ctx, []*idedocs.Chunk{{ID: "c-1", ToolID: tool.ID, SourceURL: "https://zed.dev/docs", Content: "Hello."}})
		require.NoError(t, err)

		vec := []float32{0.25, -1.5, 3.125e-7}
		require.NoError(t, svc.AttachEmbedding(ctx, "c-1", vec))

		found, err := svc.FindChunkByID(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, vec, found.Embedding)
	})

	t.Run("returns ENOTFOUND for unknown chunk", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)

		err := sqlite.NewChunkService(db).AttachEmbedding(context.Background(), "missing", []float32{1})

		assert.Equal(t, idedocs.ENOTFOUND, idedocs.ErrorCode(err))
	})

	t.Run("rejects empty vectors", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)

		err := sqlite.NewChunkService(db).AttachEmbedding(context.Background(), "c-1", nil)

		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})
}

func TestChunkService_FindChunks(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	svc := sqlite.NewChunkService(db)
	ctx := context.Background()
	zed := createTool(t, db, "zed")
	cursor := createTool(t, db, "cursor")

	_, err := svc.UpsertChunks(ctx, []*idedocs.Chunk{
		{ID: "z-2", ToolID: zed.ID, SourceURL: "https://zed.dev/docs/a", Content: "second", Position: 1, DocVersion: "1.0"},
		{ID: "z-1", ToolID: zed.ID, SourceURL: "https://zed.dev/docs/a", Content: "first", Position: 0, DocVersion: "1.0"},
		{ID: "z-3", ToolID: zed.ID, SourceURL: "https://zed.dev/docs/b", Content: "third", DocVersion: "2.0"},
		{ID: "c-1", ToolID: cursor.ID, SourceURL: "https://docs.cursor.com/", Content: "cursor"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AttachEmbedding(ctx, "z-1", []float32{1, 0}))

	t.Run("orders by page and position", func(t *testing.T) {
		chunks, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &zed.ID})
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, []string{"z-1", "z-2", "z-3"}, []string{chunks[0].ID, chunks[1].ID, chunks[2].ID})
	})

	t.Run("filters by embedding presence", func(t *testing.T) {
		yes, no := true, false

		embedded, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &zed.ID, HasEmbedding: &yes})
		require.NoError(t, err)
		require.Len(t, embedded, 1)
		assert.Equal(t, "z-1", embedded[0].ID)

		pending, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &zed.ID, HasEmbedding: &no})
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("filters by version", func(t *testing.T) {
		version := "2.0"
		chunks, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &zed.ID, DocVersion: &version})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "z-3", chunks[0].ID)
	})

	t.Run("limits results", func(t *testing.T) {
		chunks, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &zed.ID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})
}

func TestChunkService_UpsertChunks_NewRelease(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	svc := sqlite.NewChunkService(db)
	ctx := context.Background()
	tool := createTool(t, db, "zed")

	page := func(version string) []*idedocs.Chunk {
		return []*idedocs.Chunk{
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/themes", Content: "Themes live in ~/.config/zed/themes.", DocVersion: version},
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/keys", Content: "Keymaps are JSON.", DocVersion: version},
		}
	}
	_, err := svc.UpsertChunks(ctx, page("1.0"))
	require.NoError(t, err)

	n, err := svc.UpsertChunks(ctx, page("2.0"))
	require.NoError(t, err)
	assert.Zero(t, n)

	v2 := "2.0"
	chunks, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &tool.ID, DocVersion: &v2})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, ch := range chunks {
		assert.Equal(t, "2.0", ch.DocVersion)
	}

	all, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &tool.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, ch := range all {
		assert.Equal(t, "1.0", ch.DocVersion)
	}

	v1 := "1.0"
	old, err := svc.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &tool.ID, DocVersion: &v1})
	require.NoError(t, err)
	assert.Len(t, old, 2)
}

func TestChunkService_DeleteChunksByTool(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	svc := sqlite.NewChunkService(db)
	ctx := context.Background()
	zed := createTool(t, db, "zed")
	cursor := createTool(t, db, "cursor")
	_, err := svc.UpsertChunks(ctx, []*idedocs.Chunk{
		{ToolID: zed.ID, SourceURL: "https://zed.dev/docs", Content: "zed"},
		{ToolID: cursor.ID, SourceURL: "https://docs.cursor.com/", Content: "cursor"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChunksByTool(ctx, zed.ID))

	all, err := svc.FindChunks(ctx, idedocs.ChunkFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, cursor.ID, all[0].ToolID)
}
