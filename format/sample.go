package format

import (
	"strings"

	"github.com/fwojciec/idedocs"
)

// Sample joins chunk contents in order, separated by blank lines, until
// maxChars is reached. A chunk that would overflow the budget is left out
// unless it is the first.
func Sample(chunks []*idedocs.Chunk, maxChars int) string {
	var b strings.Builder
	for _, ch := range chunks {
		content := strings.TrimSpace(ch.Content)
		if content == "" {
			continue
		}
		sep := 0
		if b.Len() > 0 {
			sep = 2
		}
		if maxChars > 0 && b.Len()+sep+len(content) > maxChars {
			if b.Len() == 0 {
				b.WriteString(strings.ToValidUTF8(content[:maxChars], ""))
			}
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}
	return b.String()
}
