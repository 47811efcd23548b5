package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestService(t *testing.T) {
	t.Parallel()

	t.Run("replaces the stored manifest", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		svc := sqlite.NewManifestService(db)
		ctx := context.Background()
		tool := createTool(t, db, "cursor")

		m := &idedocs.IDEManifest{
			ToolID:           tool.ID,
			ToolName:         "cursor",
			DocVersion:       "0.45",
			DocSources:       []string{"https://docs.cursor.com/"},
			PreferredFormat:  idedocs.FormatMarkdown,
			Confidence:       85,
			DetectionMethods: []string{"heuristic"},
			Trusted:          true,
			LastUpdated:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		require.NoError(t, svc.SaveManifest(ctx, m))

		m.Confidence = 90
		require.NoError(t, svc.SaveManifest(ctx, m))

		found, err := svc.FindManifest(ctx, tool.ID)
		require.NoError(t, err)
		assert.Equal(t, m, found)
	})

	t.Run("returns ENOTFOUND before the first build", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		tool := createTool(t, db, "cursor")

		_, err := sqlite.NewManifestService(db).FindManifest(context.Background(), tool.ID)

		assert.Equal(t, idedocs.ENOTFOUND, idedocs.ErrorCode(err))
	})

	t.Run("rejects unsupported formats", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		tool := createTool(t, db, "cursor")

		err := sqlite.NewManifestService(db).SaveManifest(context.Background(), &idedocs.IDEManifest{ToolID: tool.ID, PreferredFormat: "yaml"})

		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})
}
