package idedocs

import (
	"strconv"
	"strings"
)

// FormatSource formats a chunk as a numbered context entry for an LLM
// prompt. The number is what answers cite, e.g. [2].
func FormatSource(n int, c *Chunk) string {
	header := c.SourceURL
	if c.Section != "" {
		header = c.Section + " (" + c.SourceURL + ")"
	}
	return "[" + strconv.Itoa(n) + "] " + header + "\n" + c.Content
}

// FormatContext formats chunks as numbered context entries, starting at 1.
// Entries are separated by blank lines.
func FormatContext(chunks []*Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, FormatSource(i+1, c))
	}

	return strings.Join(parts, "\n\n")
}
