// Package embed turns chunk text into vectors through an idedocs.Embedder,
// batching requests and reporting failures per id.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/retry"
	"golang.org/x/sync/errgroup"
)

var _ idedocs.EmbeddingService = (*Service)(nil)

// Options configures a Service.
type Options struct {
	BatchSize   int          // inputs per provider call
	Concurrency int          // batches in flight at once
	Retry       retry.Policy // applied to every provider call
}

// DefaultOptions returns batches of 64, four at a time, with the default
// retry policy.
func DefaultOptions() Options {
	return Options{
		BatchSize:   64,
		Concurrency: 4,
		Retry:       retry.DefaultPolicy(),
	}
}

// Service implements idedocs.EmbeddingService.
type Service struct {
	Embedder idedocs.Embedder
	Chunks   idedocs.ChunkService // used by EmbedPending
	Options  Options
	Logger   *slog.Logger
}

// NewService returns a Service with default options.
func NewService(embedder idedocs.Embedder, chunks idedocs.ChunkService) *Service {
	return &Service{
		Embedder: embedder,
		Chunks:   chunks,
		Options:  DefaultOptions(),
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// GenerateEmbeddings embeds inputs in batches. A failing batch marks its
// ids failed without affecting other batches. Only ECONFIG from the
// provider or cancellation of ctx fail the whole call.
//
// Returns EINVALID if an id is empty or repeated.
func (s *Service) GenerateEmbeddings(ctx context.Context, inputs []idedocs.EmbedInput) (*idedocs.EmbedResult, error) {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			return nil, idedocs.Errorf(idedocs.EINVALID, "embed input id required")
		}
		if seen[in.ID] {
			return nil, idedocs.Errorf(idedocs.EINVALID, "duplicate embed input id %q", in.ID)
		}
		seen[in.ID] = true
	}

	c := newCollector(len(inputs))
	var pending []idedocs.EmbedInput
	for _, in := range inputs {
		if strings.TrimSpace(in.Text) == "" {
			c.fail(in.ID, "empty text")
			continue
		}
		pending = append(pending, in)
	}

	batchSize := max(s.Options.BatchSize, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Options.Concurrency, 1))
	for start := 0; start < len(pending); start += batchSize {
		batch := pending[start:min(start+batchSize, len(pending))]
		g.Go(func() error {
			return s.embedBatch(gctx, batch, c)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.dropOddDimensions()
	return c.result(inputs), nil
}

func (s *Service) embedBatch(ctx context.Context, batch []idedocs.EmbedInput, c *collector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	texts := make([]string, len(batch))
	for i, in := range batch {
		texts[i] = in.Text
	}

	policy := s.Options.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.logger().Debug("retrying embedding batch", "size", len(batch), "attempt", attempt, "delay", delay, "err", err)
	}
	vectors, err := retry.Value(ctx, policy, func(ctx context.Context) ([][]float32, error) {
		return s.Embedder.Embed(ctx, texts)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if idedocs.ErrorCode(err) == idedocs.ECONFIG {
			return err
		}
		s.logger().Warn("embedding batch failed", "size", len(batch), "err", err)
		for _, in := range batch {
			c.fail(in.ID, idedocs.ErrorMessage(err))
		}
		return nil
	}

	if len(vectors) != len(batch) {
		reason := fmt.Sprintf("provider returned %d vectors for %d inputs", len(vectors), len(batch))
		for _, in := range batch {
			c.fail(in.ID, reason)
		}
		return nil
	}
	for i, in := range batch {
		if len(vectors[i]) == 0 {
			c.fail(in.ID, "provider returned an empty vector")
			continue
		}
		c.succeed(in.ID, vectors[i])
	}
	return nil
}

// EmbedQuery embeds a single query text with the service's retry policy.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "query text required")
	}
	vectors, err := retry.Value(ctx, s.Options.Retry, func(ctx context.Context) ([][]float32, error) {
		return s.Embedder.Embed(ctx, []string{text})
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, idedocs.Errorf(idedocs.EUNAVAILABLE, "provider returned no query vector")
	}
	return vectors[0], nil
}

// EmbedPending embeds the stored chunks of a tool that have no vector yet
// and attaches the results. Running it again only retries what is still
// missing.
func (s *Service) EmbedPending(ctx context.Context, toolID string) (*idedocs.EmbedResult, error) {
	missing := false
	chunks, err := s.Chunks.FindChunks(ctx, idedocs.ChunkFilter{ToolID: &toolID, HasEmbedding: &missing})
	if err != nil {
		return nil, err
	}

	inputs := make([]idedocs.EmbedInput, len(chunks))
	for i, ch := range chunks {
		inputs[i] = idedocs.EmbedInput{ID: ch.ID, Text: embedText(ch)}
	}
	result, err := s.GenerateEmbeddings(ctx, inputs)
	if err != nil {
		return nil, err
	}

	for _, id := range result.Succeeded {
		if err := s.Chunks.AttachEmbedding(ctx, id, result.Vectors[id]); err != nil {
			return nil, fmt.Errorf("attach embedding %s: %w", id, err)
		}
	}
	return result, nil
}

// embedText prefixes the section breadcrumb so that chunks under a heading
// are found by queries naming it.
func embedText(ch *idedocs.Chunk) string {
	if ch.Section == "" {
		return ch.Content
	}
	return ch.Section + "\n\n" + ch.Content
}

// collector gathers per-id outcomes from concurrent batches.
type collector struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failed  map[string]string
}

func newCollector(n int) *collector {
	return &collector{
		vectors: make(map[string][]float32, n),
		failed:  make(map[string]string),
	}
}

func (c *collector) succeed(id string, v []float32) {
	c.mu.Lock()
	c.vectors[id] = v
	c.mu.Unlock()
}

func (c *collector) fail(id, reason string) {
	c.mu.Lock()
	c.failed[id] = reason
	c.mu.Unlock()
}

// dropOddDimensions fails vectors whose width differs from the most common
// width. Ties go to the smaller width so the outcome is deterministic.
func (c *collector) dropOddDimensions() {
	counts := make(map[int]int)
	for _, v := range c.vectors {
		counts[len(v)]++
	}
	if len(counts) < 2 {
		return
	}
	best, bestCount := 0, 0
	for dim, n := range counts {
		if n > bestCount || (n == bestCount && dim < best) {
			best, bestCount = dim, n
		}
	}
	for id, v := range c.vectors {
		if len(v) != best {
			delete(c.vectors, id)
			c.failed[id] = fmt.Sprintf("vector has %d dimensions, expected %d", len(v), best)
		}
	}
}

func (c *collector) result(inputs []idedocs.EmbedInput) *idedocs.EmbedResult {
	res := &idedocs.EmbedResult{
		Vectors:   c.vectors,
		Succeeded: make([]string, 0, len(c.vectors)),
		Failed:    c.failed,
	}
	for _, in := range inputs {
		if _, ok := c.vectors[in.ID]; ok {
			res.Succeeded = append(res.Succeeded, in.ID)
		}
	}
	return res
}
