// Package validate periodically re-detects the prompt format of every tool
// and rebuilds manifests that no longer match the stored documentation.
package validate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/format"
	"github.com/fwojciec/idedocs/manifest"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of tools validated at a time.
const DefaultConcurrency = 5

// Outcome is the result of validating one tool.
type Outcome string

// Validation outcomes.
const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeSkipped   Outcome = "skipped" // no stored documentation
	OutcomeFailed    Outcome = "failed"
)

// ToolReport is the validation outcome of a tool.
type ToolReport struct {
	ToolID  string
	Outcome Outcome
	Err     error
}

// Report tallies a validation run. Tools is ordered like the tool list.
type Report struct {
	Tools     []ToolReport
	Unchanged int
	Updated   int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Job validates the manifests of all tools.
type Job struct {
	Tools     idedocs.ToolService
	Chunks    idedocs.ChunkService
	Manifests idedocs.ManifestService
	Detector  idedocs.FormatDetector
	Builder   *manifest.Builder

	Concurrency int
	SampleChars int
	Logger      *slog.Logger

	// mu prevents overlapping runs when scheduled.
	mu sync.Mutex
}

// NewJob returns a Job with the default concurrency cap.
func NewJob(tools idedocs.ToolService, chunks idedocs.ChunkService, manifests idedocs.ManifestService, detector idedocs.FormatDetector, builder *manifest.Builder) *Job {
	return &Job{
		Tools:       tools,
		Chunks:      chunks,
		Manifests:   manifests,
		Detector:    detector,
		Builder:     builder,
		Concurrency: DefaultConcurrency,
		SampleChars: 8000,
	}
}

func (j *Job) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return j.Logger
}

// Run validates every tool, at most Concurrency at a time. A failing tool
// is tallied and does not stop the others; only failing to list tools or
// cancellation of ctx fails the run.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	begin := time.Now()
	tools, err := j.Tools.FindTools(ctx, idedocs.ToolFilter{})
	if err != nil {
		return nil, err
	}

	report := &Report{Tools: make([]ToolReport, len(tools))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(j.Concurrency, 1))
	for i, tool := range tools {
		g.Go(func() error {
			outcome, err := j.validateTool(gctx, tool)
			if err != nil {
				outcome = OutcomeFailed
				j.logger().Warn("validation failed", "tool", tool.Name, "err", err)
			}
			report.Tools[i] = ToolReport{ToolID: tool.ID, Outcome: outcome, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, tr := range report.Tools {
		switch tr.Outcome {
		case OutcomeUnchanged:
			report.Unchanged++
		case OutcomeUpdated:
			report.Updated++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}
	report.Duration = time.Since(begin)
	j.logger().Info("validation finished",
		"tools", len(tools),
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, ctx.Err()
}

func (j *Job) validateTool(ctx context.Context, tool *idedocs.Tool) (Outcome, error) {
	filter := idedocs.ChunkFilter{ToolID: &tool.ID}
	if tool.DocVersion != "" {
		filter.DocVersion = &tool.DocVersion
	}
	chunks, err := j.Chunks.FindChunks(ctx, filter)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return OutcomeSkipped, nil
	}

	detection, err := j.Detector.DetectFormat(ctx, tool.ID, format.Sample(chunks, j.SampleChars))
	if err != nil {
		return "", err
	}
	built, err := j.Builder.Build(tool.ID, tool.Name, detection, chunks, tool.DocVersion)
	if err != nil {
		return "", err
	}

	stored, err := j.Manifests.FindManifest(ctx, tool.ID)
	if err != nil && idedocs.ErrorCode(err) != idedocs.ENOTFOUND {
		return "", err
	}
	if stored != nil && manifest.Equal(stored, built) {
		return OutcomeUnchanged, nil
	}
	if err := j.Manifests.SaveManifest(ctx, built); err != nil {
		return "", err
	}
	j.logger().Info("manifest updated", "tool", tool.Name, "format", built.PreferredFormat, "confidence", built.Confidence)
	return OutcomeUpdated, nil
}
