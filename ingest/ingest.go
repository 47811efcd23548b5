// Package ingest runs the ingestion pipeline of a tool: crawl, chunk,
// embed, detect the prompt format and rebuild the manifest, tracked by an
// IngestStatus record.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/crawl"
	"github.com/fwojciec/idedocs/format"
	"github.com/fwojciec/idedocs/manifest"
	"github.com/google/uuid"
)

// DefaultSampleChars bounds the documentation sample used for format
// detection.
const DefaultSampleChars = 8000

// PendingEmbedder embeds the stored chunks of a tool that lack a vector.
type PendingEmbedder interface {
	EmbedPending(ctx context.Context, toolID string) (*idedocs.EmbedResult, error)
}

// Ingester runs ingestion for one tool at a time per call. Calls for
// different tools may run concurrently.
type Ingester struct {
	Tools     idedocs.ToolService
	Chunks    idedocs.ChunkService
	Statuses  idedocs.IngestService
	Manifests idedocs.ManifestService

	Crawler    *crawl.Crawler
	Embeddings PendingEmbedder
	Detector   idedocs.FormatDetector
	Builder    *manifest.Builder

	Logger *slog.Logger
}

func (in *Ingester) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return in.Logger
}

// RunOptions configures a single ingestion run.
type RunOptions struct {
	Crawl       crawl.Options
	Chunk       idedocs.ChunkOptions
	SampleChars int
	Progress    crawl.ProgressFunc

	// Mirror, if set, receives a copy of every fetched page. It is
	// committed when the run completes and aborted when it fails.
	Mirror idedocs.PageStore
}

// DefaultRunOptions returns the options used by the CLI and the scheduler.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Crawl:       crawl.DefaultOptions(),
		Chunk:       idedocs.DefaultChunkOptions(),
		SampleChars: DefaultSampleChars,
	}
}

// Report is the outcome of an ingestion run.
type Report struct {
	Status    *idedocs.IngestStatus
	Crawl     *crawl.Stats
	Embed     *idedocs.EmbedResult
	Detection *idedocs.FormatDetectionResult
	Manifest  *idedocs.IDEManifest
}

// Run ingests the documentation of toolID. The run's status record moves
// pending -> in_progress -> completed, or to failed with the error message
// when any stage fails. Partial crawl and embedding failures do not fail
// the run.
//
// The returned Report is non-nil whenever a status record was created.
func (in *Ingester) Run(ctx context.Context, toolID string, opts RunOptions) (*Report, error) {
	if err := opts.Chunk.Validate(); err != nil {
		return nil, err
	}
	tool, err := in.Tools.FindToolByID(ctx, toolID)
	if err != nil {
		return nil, err
	}

	owner := uuid.NewString()
	status := &idedocs.IngestStatus{ToolID: tool.ID, Owner: owner, State: idedocs.IngestPending}
	if err := in.Statuses.CreateIngestStatus(ctx, status); err != nil {
		return nil, err
	}
	report := &Report{Status: status}

	if report.Status, err = in.Statuses.TransitionIngestStatus(ctx, status.ID, owner, idedocs.IngestTransition{
		State: idedocs.IngestInProgress,
	}); err != nil {
		report.Status = status
		return report, in.fail(ctx, report, owner, err)
	}
	in.logger().Info("ingest started", "tool", tool.Name, "run", status.ID)

	var stored atomic.Int64
	err = in.run(ctx, tool, opts, report, &stored)
	if err == nil && opts.Mirror != nil {
		if err = opts.Mirror.Commit(); err != nil {
			err = fmt.Errorf("commit mirror: %w", err)
		}
	}
	if err != nil {
		if opts.Mirror != nil {
			if aerr := opts.Mirror.Abort(); aerr != nil {
				in.logger().Warn("discard mirror", "tool", tool.Name, "err", aerr)
			}
		}
		return report, in.fail(ctx, report, owner, err)
	}

	report.Status, err = in.Statuses.TransitionIngestStatus(ctx, status.ID, owner, idedocs.IngestTransition{
		State:           idedocs.IngestCompleted,
		ChunksProcessed: int(stored.Load()),
	})
	if err != nil {
		return report, err
	}
	in.logger().Info("ingest completed", "tool", tool.Name, "run", status.ID, "chunks", stored.Load())
	return report, nil
}

func (in *Ingester) run(ctx context.Context, tool *idedocs.Tool, opts RunOptions, report *Report, stored *atomic.Int64) error {
	copts := opts.Crawl
	if len(copts.AllowedPatterns) == 0 && len(tool.AllowedPatterns) > 0 {
		patterns, err := crawl.CompilePatterns(tool.AllowedPatterns)
		if err != nil {
			return err
		}
		copts.AllowedPatterns = patterns
	}

	crawler := *in.Crawler
	crawler.Handler = idedocs.PageHandlerFunc(func(ctx context.Context, page *idedocs.Page) (int, error) {
		if opts.Mirror != nil {
			if err := opts.Mirror.Save(ctx, page); err != nil {
				return 0, fmt.Errorf("mirror: %w", err)
			}
		}
		chunks := idedocs.SplitChunks(tool.ID, page.Content, page.URL, tool.DocVersion, opts.Chunk)
		if len(chunks) == 0 {
			return 0, nil
		}
		n, err := in.Chunks.UpsertChunks(ctx, chunks)
		if err != nil {
			return 0, err
		}
		stored.Add(int64(n))
		return n, nil
	})

	stats, err := crawler.Crawl(ctx, tool.SeedURLs, tool.ID, copts, opts.Progress)
	report.Crawl = stats
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	in.logger().Info("crawl finished",
		"tool", tool.Name,
		"fetched", stats.Fetched,
		"failed", stats.Failed,
		"skipped_robots", stats.SkippedRobots,
		"skipped_pattern", stats.SkippedPattern,
		"chunks", stats.ChunksStored,
	)

	if report.Embed, err = in.Embeddings.EmbedPending(ctx, tool.ID); err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if n := len(report.Embed.Failed); n > 0 {
		in.logger().Warn("some chunks were not embedded", "tool", tool.Name, "failed", n)
	}

	filter := idedocs.ChunkFilter{ToolID: &tool.ID}
	if tool.DocVersion != "" {
		filter.DocVersion = &tool.DocVersion
	}
	chunks, err := in.Chunks.FindChunks(ctx, filter)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return idedocs.Errorf(idedocs.EINVALID, "no documentation stored for %s", tool.Name)
	}

	sampleChars := opts.SampleChars
	if sampleChars <= 0 {
		sampleChars = DefaultSampleChars
	}
	if report.Detection, err = in.Detector.DetectFormat(ctx, tool.ID, format.Sample(chunks, sampleChars)); err != nil {
		return fmt.Errorf("detect format: %w", err)
	}

	if report.Manifest, err = in.Builder.Build(tool.ID, tool.Name, report.Detection, chunks, tool.DocVersion); err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	return in.Manifests.SaveManifest(ctx, report.Manifest)
}

// fail records err on the run and returns it. The failed transition is
// written even when ctx has been cancelled.
func (in *Ingester) fail(ctx context.Context, report *Report, owner string, err error) error {
	in.logger().Error("ingest failed", "tool", report.Status.ToolID, "run", report.Status.ID, "err", err)

	msg := idedocs.ErrorMessage(err)
	if idedocs.ErrorCode(err) == idedocs.EINTERNAL {
		msg = err.Error()
	}
	st, terr := in.Statuses.TransitionIngestStatus(context.WithoutCancel(ctx), report.Status.ID, owner, idedocs.IngestTransition{
		State: idedocs.IngestFailed,
		Error: msg,
	})
	if terr != nil {
		in.logger().Error("record ingest failure", "run", report.Status.ID, "err", terr)
		return err
	}
	report.Status = st
	return err
}
