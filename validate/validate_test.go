package validate_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/manifest"
	"github.com/fwojciec/idedocs/mock"
	"github.com/fwojciec/idedocs/sqlite"
	"github.com/fwojciec/idedocs/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markdownDetection() *idedocs.FormatDetectionResult {
	return &idedocs.FormatDetectionResult{
		PreferredFormat:      idedocs.FormatMarkdown,
		ConfidenceScore:      80,
		DetectionMethodsUsed: []string{idedocs.MethodHeuristic},
	}
}

// store is an in-memory manifest store.
type store struct {
	mu        sync.Mutex
	manifests map[string]*idedocs.IDEManifest
	saves     int
}

func (s *store) service() *mock.ManifestService {
	return &mock.ManifestService{
		SaveManifestFn: func(_ context.Context, m *idedocs.IDEManifest) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.manifests[m.ToolID] = m
			s.saves++
			return nil
		},
		FindManifestFn: func(_ context.Context, toolID string) (*idedocs.IDEManifest, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			m, ok := s.manifests[toolID]
			if !ok {
				return nil, idedocs.Errorf(idedocs.ENOTFOUND, "manifest not found")
			}
			return m, nil
		},
	}
}

func tools(n int) *mock.ToolService {
	return &mock.ToolService{
		FindToolsFn: func(context.Context, idedocs.ToolFilter) ([]*idedocs.Tool, error) {
			out := make([]*idedocs.Tool, n)
			for i := range out {
				out[i] = &idedocs.Tool{ID: fmt.Sprintf("tool-%d", i), Name: fmt.Sprintf("Tool %d", i)}
			}
			return out, nil
		},
	}
}

func chunksFor(skip map[string]bool) *mock.ChunkService {
	return &mock.ChunkService{
		FindChunksFn: func(_ context.Context, filter idedocs.ChunkFilter) ([]*idedocs.Chunk, error) {
			id := *filter.ToolID
			if skip[id] {
				return nil, nil
			}
			return []*idedocs.Chunk{{ToolID: id, SourceURL: "https://docs.example.com/" + id, Content: "## Setup\n\n- step"}}, nil
		},
	}
}

func TestJob_Run(t *testing.T) {
	t.Parallel()

	t.Run("caps concurrent detections", func(t *testing.T) {
		t.Parallel()

		var inFlight, peak atomic.Int32
		detector := &mock.FormatDetector{
			DetectFormatFn: func(context.Context, string, string) (*idedocs.FormatDetectionResult, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				inFlight.Add(-1)
				return markdownDetection(), nil
			},
		}
		s := &store{manifests: map[string]*idedocs.IDEManifest{}}
		job := validate.NewJob(tools(12), chunksFor(nil), s.service(), detector, manifest.NewBuilder())

		report, err := job.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 12, report.Updated)
		assert.LessOrEqual(t, peak.Load(), int32(validate.DefaultConcurrency))
		assert.GreaterOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("saves only changed manifests", func(t *testing.T) {
		t.Parallel()

		s := &store{manifests: map[string]*idedocs.IDEManifest{}}
		detector := &mock.FormatDetector{
			DetectFormatFn: func(context.Context, string, string) (*idedocs.FormatDetectionResult, error) {
				return markdownDetection(), nil
			},
		}
		job := validate.NewJob(tools(3), chunksFor(nil), s.service(), detector, manifest.NewBuilder())

		first, err := job.Run(context.Background())
		require.NoError(t, err)
		second, err := job.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3, first.Updated)
		assert.Equal(t, 3, second.Unchanged)
		assert.Equal(t, 0, second.Updated)
		assert.Equal(t, 3, s.saves)
	})

	t.Run("tallies per-tool failures without stopping", func(t *testing.T) {
		t.Parallel()

		s := &store{manifests: map[string]*idedocs.IDEManifest{}}
		detector := &mock.FormatDetector{
			DetectFormatFn: func(_ context.Context, toolID, _ string) (*idedocs.FormatDetectionResult, error) {
				if toolID == "tool-1" {
					return nil, idedocs.Errorf(idedocs.EUNAVAILABLE, "provider down")
				}
				return markdownDetection(), nil
			},
		}
		job := validate.NewJob(tools(4), chunksFor(map[string]bool{"tool-3": true}), s.service(), detector, manifest.NewBuilder())

		report, err := job.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, report.Updated)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, validate.OutcomeFailed, report.Tools[1].Outcome)
		assert.Equal(t, idedocs.EUNAVAILABLE, idedocs.ErrorCode(report.Tools[1].Err))
		assert.Equal(t, validate.OutcomeSkipped, report.Tools[3].Outcome)
	})

	t.Run("returns tool listing errors", func(t *testing.T) {
		t.Parallel()

		job := validate.NewJob(&mock.ToolService{
			FindToolsFn: func(context.Context, idedocs.ToolFilter) ([]*idedocs.Tool, error) {
				return nil, fmt.Errorf("disk I/O error")
			},
		}, nil, nil, nil, manifest.NewBuilder())

		_, err := job.Run(context.Background())

		assert.Error(t, err)
	})
}

func TestJob_Run_CarriesChunksIntoNewRelease(t *testing.T) {
	t.Parallel()

	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	tools := sqlite.NewToolService(db)
	tool := &idedocs.Tool{Name: "zed", SeedURLs: []string{"https://zed.dev/docs/"}, DocVersion: "1.0"}
	require.NoError(t, tools.CreateTool(ctx, tool))

	chunks := sqlite.NewChunkService(db)
	page := func(version string) []*idedocs.Chunk {
		return []*idedocs.Chunk{
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/themes", Content: "Themes are JSON files.", DocVersion: version},
			{ToolID: tool.ID, SourceURL: "https://zed.dev/docs/keys", Content: "Keymaps are JSON files.", DocVersion: version},
		}
	}
	_, err := chunks.UpsertChunks(ctx, page("1.0"))
	require.NoError(t, err)

	version := "2.0"
	_, err = tools.UpdateTool(ctx, tool.ID, idedocs.ToolUpdate{DocVersion: &version})
	require.NoError(t, err)
	_, err = chunks.UpsertChunks(ctx, page("2.0"))
	require.NoError(t, err)

	manifests := sqlite.NewManifestService(db)
	detector := &mock.FormatDetector{
		DetectFormatFn: func(context.Context, string, string) (*idedocs.FormatDetectionResult, error) {
			return markdownDetection(), nil
		},
	}
	job := validate.NewJob(tools, chunks, manifests, detector, manifest.NewBuilder())

	report, err := job.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Zero(t, report.Skipped)
	saved, err := manifests.FindManifest(ctx, tool.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.0", saved.DocVersion)
	assert.Len(t, saved.DocSources, 2)
}
