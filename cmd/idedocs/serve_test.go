package main_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/idedocs"
	main "github.com/fwojciec/idedocs/cmd/idedocs"
	"github.com/fwojciec/idedocs/cron"
	"github.com/fwojciec/idedocs/manifest"
	"github.com/fwojciec/idedocs/mock"
	"github.com/fwojciec/idedocs/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationDeps(t *testing.T) (*main.Dependencies, *bytes.Buffer, *int) {
	t.Helper()

	tools := &mock.ToolService{
		FindToolsFn: func(context.Context, idedocs.ToolFilter) ([]*idedocs.Tool, error) {
			return []*idedocs.Tool{{ID: "t1", Name: "zed"}, {ID: "t2", Name: "helix"}}, nil
		},
	}
	deps, stdout, _ := newDeps(tools)
	chunks := &mock.ChunkService{
		FindChunksFn: func(_ context.Context, filter idedocs.ChunkFilter) ([]*idedocs.Chunk, error) {
			if *filter.ToolID == "t2" {
				return nil, nil
			}
			return []*idedocs.Chunk{{ToolID: "t1", SourceURL: "https://zed.dev/docs", Content: "# Zed\n\nSettings."}}, nil
		},
	}
	saved := 0
	manifests := &mock.ManifestService{
		FindManifestFn: func(context.Context, string) (*idedocs.IDEManifest, error) {
			return nil, idedocs.Errorf(idedocs.ENOTFOUND, "manifest not found")
		},
		SaveManifestFn: func(context.Context, *idedocs.IDEManifest) error {
			saved++
			return nil
		},
	}
	detector := &mock.FormatDetector{
		DetectFormatFn: func(context.Context, string, string) (*idedocs.FormatDetectionResult, error) {
			return &idedocs.FormatDetectionResult{
				PreferredFormat:      idedocs.FormatMarkdown,
				ConfidenceScore:      80,
				DetectionMethodsUsed: []string{idedocs.MethodHeuristic},
			}, nil
		},
	}
	deps.Validator = validate.NewJob(tools, chunks, manifests, detector, manifest.NewBuilder())
	deps.Validator.Concurrency = 1
	deps.Scheduler = cron.NewScheduler(nil)
	return deps, stdout, &saved
}

func TestValidateCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("validates once without a schedule", func(t *testing.T) {
		t.Parallel()

		deps, stdout, saved := validationDeps(t)

		require.NoError(t, (&main.ValidateCmd{}).Run(deps))

		out := stdout.String()
		assert.Equal(t, 1, *saved)
		assert.Contains(t, out, "t1  updated")
		assert.Contains(t, out, "t2  skipped")
		assert.Contains(t, out, "1 updated, 0 unchanged, 1 skipped, 0 failed")
	})

	t.Run("rejects invalid schedules", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := validationDeps(t)

		err := (&main.ValidateCmd{Schedule: "whenever"}).Run(deps)

		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})

	t.Run("stops when interrupted", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := validationDeps(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		deps.Ctx = ctx

		assert.NoError(t, (&main.ValidateCmd{Schedule: "@every 1h"}).Run(deps))
	})
}

func TestServeCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("serves until interrupted", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps(&mock.ToolService{})
		ctx, cancel := context.WithCancel(context.Background())
		deps.Ctx = ctx
		stopped := false
		deps.Serve = func(addr string) (string, func() error, error) {
			assert.Equal(t, "localhost:0", addr)
			cancel()
			return "127.0.0.1:41234", func() error {
				stopped = true
				return nil
			}, nil
		}

		require.NoError(t, (&main.ServeCmd{Addr: "localhost:0"}).Run(deps))

		assert.True(t, stopped)
		assert.Contains(t, stdout.String(), "Serving on http://127.0.0.1:41234")
	})

	t.Run("reports listen failures", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps(&mock.ToolService{})
		deps.Serve = func(string) (string, func() error, error) {
			return "", nil, errors.New("address already in use")
		}

		err := (&main.ServeCmd{Addr: "localhost:8080"}).Run(deps)

		require.Error(t, err)
		assert.Contains(t, stderr.String(), "address already in use")
	})
}
