package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/idedocs"
)

var (
	_ idedocs.Embedder       = (*LoggingEmbedder)(nil)
	_ idedocs.Completer      = (*LoggingCompleter)(nil)
	_ idedocs.FormatDetector = (*LoggingFormatDetector)(nil)
)

// LoggingEmbedder wraps an Embedder and logs each provider call.
type LoggingEmbedder struct {
	next   idedocs.Embedder
	logger *slog.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next idedocs.Embedder, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// Embed delegates to the wrapped embedder.
func (e *LoggingEmbedder) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer func(begin time.Time) {
		dims := 0
		if len(vectors) > 0 {
			dims = len(vectors[0])
		}
		e.logger.Debug("embed",
			"texts", len(texts),
			"vectors", len(vectors),
			"dims", dims,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Embed(ctx, texts)
}

// LoggingCompleter wraps a Completer and logs model and token usage.
type LoggingCompleter struct {
	next   idedocs.Completer
	logger *slog.Logger
}

// NewLoggingCompleter creates a new LoggingCompleter.
func NewLoggingCompleter(next idedocs.Completer, logger *slog.Logger) *LoggingCompleter {
	return &LoggingCompleter{next: next, logger: logger}
}

// Complete delegates to the wrapped completer.
func (c *LoggingCompleter) Complete(ctx context.Context, req idedocs.CompletionRequest) (completion *idedocs.Completion, err error) {
	defer func(begin time.Time) {
		attrs := []any{"messages", len(req.Messages), "duration", time.Since(begin)}
		if completion != nil {
			attrs = append(attrs,
				"model", completion.Model,
				"input_tokens", completion.InputTokens,
				"output_tokens", completion.OutputTokens,
			)
		}
		if err != nil {
			attrs = append(attrs, "code", idedocs.ErrorCode(err), "err", err)
		}
		c.logger.Debug("completion", attrs...)
	}(time.Now())
	return c.next.Complete(ctx, req)
}

// LoggingFormatDetector wraps a FormatDetector and logs each decision.
type LoggingFormatDetector struct {
	next   idedocs.FormatDetector
	logger *slog.Logger
}

// NewLoggingFormatDetector creates a new LoggingFormatDetector.
func NewLoggingFormatDetector(next idedocs.FormatDetector, logger *slog.Logger) *LoggingFormatDetector {
	return &LoggingFormatDetector{next: next, logger: logger}
}

// DetectFormat delegates to the wrapped detector.
func (d *LoggingFormatDetector) DetectFormat(ctx context.Context, toolID, sample string) (result *idedocs.FormatDetectionResult, err error) {
	defer func(begin time.Time) {
		attrs := []any{"tool", toolID, "sample_bytes", len(sample), "duration", time.Since(begin)}
		if result != nil {
			attrs = append(attrs,
				"format", result.PreferredFormat,
				"confidence", result.ConfidenceScore,
				"methods", result.DetectionMethodsUsed,
			)
		}
		if err != nil {
			attrs = append(attrs, "err", err)
		}
		d.logger.Info("format detection", attrs...)
	}(time.Now())
	return d.next.DetectFormat(ctx, toolID, sample)
}
