package idedocs_test

import (
	"testing"

	"github.com/fwojciec/idedocs"
	"github.com/stretchr/testify/assert"
)

func TestFormatContext(t *testing.T) {
	t.Parallel()

	t.Run("formats single chunk with section", func(t *testing.T) {
		t.Parallel()

		chunks := []*idedocs.Chunk{
			{Section: "Getting Started", SourceURL: "https://docs.example.com", Content: "Welcome to the docs."},
		}

		result := idedocs.FormatContext(chunks)

		assert.Equal(t, "[1] Getting Started (https://docs.example.com)\nWelcome to the docs.", result)
	})

	t.Run("uses source URL when section is empty", func(t *testing.T) {
		t.Parallel()

		chunks := []*idedocs.Chunk{
			{SourceURL: "https://example.com/docs", Content: "Some content."},
		}

		result := idedocs.FormatContext(chunks)

		assert.Equal(t, "[1] https://example.com/docs\nSome content.", result)
	})

	t.Run("numbers multiple chunks with blank line separator", func(t *testing.T) {
		t.Parallel()

		chunks := []*idedocs.Chunk{
			{SourceURL: "https://a.dev", Content: "First content."},
			{SourceURL: "https://b.dev", Content: "Second content."},
		}

		result := idedocs.FormatContext(chunks)

		assert.Equal(t, "[1] https://a.dev\nFirst content.\n\n[2] https://b.dev\nSecond content.", result)
	})

	t.Run("returns empty string for nil slice", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, idedocs.FormatContext(nil))
	})
}
