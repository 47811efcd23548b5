package main_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fwojciec/idedocs"
	main "github.com/fwojciec/idedocs/cmd/idedocs"
	"github.com/fwojciec/idedocs/crawl"
	"github.com/fwojciec/idedocs/ingest"
	"github.com/fwojciec/idedocs/manifest"
	"github.com/fwojciec/idedocs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingFunc func(ctx context.Context, toolID string) (*idedocs.EmbedResult, error)

func (fn pendingFunc) EmbedPending(ctx context.Context, toolID string) (*idedocs.EmbedResult, error) {
	return fn(ctx, toolID)
}

// fetcherOf returns a Fetcher serving html for every URL and counting calls.
func fetcherOf(html string, calls *int, mu *sync.Mutex) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(context.Context, string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			*calls++
			return html, nil
		},
		CloseFn: func() error { return nil },
	}
}

type ingestFixture struct {
	deps   *main.Dependencies
	stdout interface{ String() string }
	stderr interface{ String() string }

	mu          sync.Mutex
	chunks      []*idedocs.Chunk
	plainCalls  int
	browserHits int
	saved       *idedocs.IDEManifest
}

func newIngestFixture(t *testing.T, plainHTML, browserHTML string) *ingestFixture {
	t.Helper()

	f := &ingestFixture{}
	tool := &idedocs.Tool{ID: "t1", Name: "zed", SeedURLs: []string{"https://zed.dev/docs"}}
	deps, stdout, stderr := newDeps(toolsNamed(tool))
	f.deps, f.stdout, f.stderr = deps, stdout, stderr

	status := &idedocs.IngestStatus{}
	chunks := &mock.ChunkService{
		UpsertChunksFn: func(_ context.Context, cs []*idedocs.Chunk) (int, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.chunks = append(f.chunks, cs...)
			return len(cs), nil
		},
		FindChunksFn: func(context.Context, idedocs.ChunkFilter) ([]*idedocs.Chunk, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return append([]*idedocs.Chunk(nil), f.chunks...), nil
		},
	}
	deps.Ingester = &ingest.Ingester{
		Tools:  deps.Tools,
		Chunks: chunks,
		Statuses: &mock.IngestService{
			CreateIngestStatusFn: func(_ context.Context, s *idedocs.IngestStatus) error {
				s.ID = "run-1"
				*status = *s
				return nil
			},
			TransitionIngestStatusFn: func(_ context.Context, _, _ string, tr idedocs.IngestTransition) (*idedocs.IngestStatus, error) {
				status.State, status.ChunksProcessed, status.Error = tr.State, tr.ChunksProcessed, tr.Error
				cp := *status
				return &cp, nil
			},
		},
		Manifests: &mock.ManifestService{
			SaveManifestFn: func(_ context.Context, m *idedocs.IDEManifest) error {
				f.saved = m
				return nil
			},
		},
		Crawler: &crawl.Crawler{
			Fetcher: fetcherOf(plainHTML, &f.plainCalls, &f.mu),
			Extractor: &mock.Extractor{
				ExtractFn: func(html string) (*idedocs.ExtractResult, error) {
					return &idedocs.ExtractResult{Title: "Zed", ContentHTML: html}, nil
				},
			},
			Converter: &mock.Converter{
				ConvertFn: func(html string) (string, error) {
					return "# Zed\n\n## Settings\n\n" + html + "\n", nil
				},
			},
		},
		Embeddings: pendingFunc(func(context.Context, string) (*idedocs.EmbedResult, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			res := &idedocs.EmbedResult{Failed: map[string]string{}}
			for _, ch := range f.chunks {
				res.Succeeded = append(res.Succeeded, ch.ID)
			}
			return res, nil
		}),
		Detector: &mock.FormatDetector{
			DetectFormatFn: func(context.Context, string, string) (*idedocs.FormatDetectionResult, error) {
				return &idedocs.FormatDetectionResult{
					PreferredFormat:      idedocs.FormatMarkdown,
					ConfidenceScore:      85,
					DetectionMethodsUsed: []string{idedocs.MethodHeuristic},
				}, nil
			},
		},
		Builder: manifest.NewBuilder(),
	}
	deps.Browser = func() (idedocs.Fetcher, error) {
		return fetcherOf(browserHTML, &f.browserHits, &f.mu), nil
	}
	return f
}

func ingestCmd(browser string) *main.IngestCmd {
	return &main.IngestCmd{
		Name:          "zed",
		MaxDepth:      0,
		MaxPages:      10,
		Concurrency:   1,
		IgnoreRobots:  true,
		Browser:       browser,
		ChunkTokens:   512,
		OverlapTokens: 64,
	}
}

func TestIngestCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("ingests with the plain fetcher", func(t *testing.T) {
		t.Parallel()

		f := newIngestFixture(t, "Configure the editor in settings.json.", "")

		require.NoError(t, ingestCmd("never").Run(f.deps))

		assert.Equal(t, 1, f.plainCalls)
		assert.Zero(t, f.browserHits)
		require.NotNil(t, f.saved)
		assert.Equal(t, idedocs.FormatMarkdown, f.saved.PreferredFormat)
		out := f.stdout.String()
		assert.Contains(t, out, "Ingesting zed")
		assert.Contains(t, out, "1 page fetched")
		assert.Contains(t, out, "Format: markdown (confidence 85)")
		assert.Contains(t, out, "Done:")
	})

	t.Run("switches to the browser when rendering adds content", func(t *testing.T) {
		t.Parallel()

		f := newIngestFixture(t, "Loading", strings.Repeat("Rendered documentation. ", 20))

		require.NoError(t, ingestCmd("auto").Run(f.deps))

		assert.Contains(t, f.stdout.String(), "headless browser")
		assert.Equal(t, 1, f.plainCalls, "only the comparison uses the plain fetcher")
		assert.Equal(t, 2, f.browserHits, "comparison and crawl")
	})

	t.Run("keeps the plain fetcher for static sites in auto mode", func(t *testing.T) {
		t.Parallel()

		html := "Static documentation page."
		f := newIngestFixture(t, html, html)

		require.NoError(t, ingestCmd("auto").Run(f.deps))

		assert.NotContains(t, f.stdout.String(), "headless browser")
		assert.Equal(t, 2, f.plainCalls, "comparison and crawl")
	})

	t.Run("does not modify the shared ingester", func(t *testing.T) {
		t.Parallel()

		f := newIngestFixture(t, "Loading", strings.Repeat("Rendered. ", 20))
		original := f.deps.Ingester.Crawler.Fetcher

		require.NoError(t, ingestCmd("always").Run(f.deps))

		assert.Same(t, original, f.deps.Ingester.Crawler.Fetcher)
	})

	t.Run("mirrors fetched pages", func(t *testing.T) {
		t.Parallel()

		f := newIngestFixture(t, "Configure the editor in settings.json.", "")
		cmd := ingestCmd("never")
		cmd.Mirror = t.TempDir()

		require.NoError(t, cmd.Run(f.deps))

		got, err := os.ReadFile(filepath.Join(cmd.Mirror, "zed", "zed.dev", "docs.md"))
		require.NoError(t, err)
		assert.Contains(t, string(got), "source: https://zed.dev/docs")
		assert.Contains(t, string(got), "settings.json")
	})
}
