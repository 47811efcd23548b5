package idedocs

import (
	"strings"

	"github.com/google/uuid"
)

// minChunkTokens is the smallest MaxTokens accepted by ChunkOptions.Validate.
const minChunkTokens = 16

// ChunkOptions bounds the size of chunks produced by SplitChunks.
// Token counts are estimated from word counts, see EstimateTokens.
type ChunkOptions struct {
	MaxTokens     int `json:"maxTokens"`
	OverlapTokens int `json:"overlapTokens"`
}

// DefaultChunkOptions returns the chunk sizing used by ingestion.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{MaxTokens: 512, OverlapTokens: 64}
}

// Validate returns an error if the options cannot produce bounded chunks.
func (o ChunkOptions) Validate() error {
	if o.MaxTokens < minChunkTokens {
		return Errorf(EINVALID, "max tokens must be at least %d", minChunkTokens)
	}
	if o.OverlapTokens < 0 || o.OverlapTokens >= o.MaxTokens {
		return Errorf(EINVALID, "overlap tokens must be in [0, %d)", o.MaxTokens)
	}
	return nil
}

func (o ChunkOptions) normalize() ChunkOptions {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultChunkOptions().MaxTokens
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	}
	if o.OverlapTokens >= o.MaxTokens {
		o.OverlapTokens = o.MaxTokens / 4
	}
	return o
}

// EstimateTokens approximates the token count of text as 4/3 tokens per
// whitespace-separated word, rounded up.
func EstimateTokens(text string) int {
	return (len(strings.Fields(text))*4 + 2) / 3
}

// SplitChunks splits markdown into chunks bounded by opts.MaxTokens.
//
// Text is split at headings first, then at paragraphs and fenced code
// blocks, and only falls back to splitting by words or lines when a single
// block exceeds the budget. Consecutive chunks of the same section share
// opts.OverlapTokens worth of trailing words. Chunks with identical
// normalized content are emitted once. The output is a pure function of the
// arguments; CreatedAt is left for the store to set.
func SplitChunks(toolID, text, sourceURL, version string, opts ChunkOptions) []*Chunk {
	opts = opts.normalize()

	maxWords := max(opts.MaxTokens*3/4, 1)
	overlapWords := opts.OverlapTokens * 3 / 4
	if overlapWords >= maxWords {
		overlapWords = maxWords / 2
	}
	budget := max(maxWords-overlapWords, 1)

	var chunks []*Chunk
	seen := make(map[string]bool)
	emit := func(label, content string) {
		hash := HashContent(content)
		if seen[hash] {
			return
		}
		seen[hash] = true
		chunks = append(chunks, &Chunk{
			ID:          ChunkID(toolID, sourceURL, hash),
			ToolID:      toolID,
			Content:     content,
			Section:     label,
			SourceURL:   sourceURL,
			DocVersion:  version,
			ContentHash: hash,
			Position:    len(chunks),
		})
	}

	for _, s := range splitSections(text) {
		blocks := splitBlocks(s.lines)
		if len(blocks) == 0 || (s.level > 0 && len(blocks) == 1) {
			// heading without a body
			continue
		}
		p := packer{budget: budget, overlap: overlapWords}
		for _, block := range blocks {
			for _, piece := range splitOversized(block, budget) {
				if content, ok := p.add(piece); ok {
					emit(s.label, content)
				}
			}
		}
		if content, ok := p.flush(); ok {
			emit(s.label, content)
		}
	}
	return chunks
}

// ChunkID returns the deterministic ID of a chunk with the given content
// hash, so re-ingesting identical content yields identical IDs.
func ChunkID(toolID, sourceURL, contentHash string) string {
	name := toolID + "\n" + sourceURL + "\n" + contentHash
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// packer greedily packs blocks into chunks of at most budget new words,
// each prefixed by the overlap carried over from the previous chunk.
type packer struct {
	budget  int
	overlap int

	prefix string
	blocks []string
	words  int
}

// add appends block, returning a completed chunk if the block did not fit.
func (p *packer) add(block string) (string, bool) {
	n := len(strings.Fields(block))
	var (
		content string
		ok      bool
	)
	if p.words > 0 && p.words+n > p.budget {
		content, ok = p.flush()
	}
	p.blocks = append(p.blocks, block)
	p.words += n
	return content, ok
}

func (p *packer) flush() (string, bool) {
	if p.words == 0 {
		return "", false
	}
	parts := p.blocks
	if p.prefix != "" {
		parts = append([]string{p.prefix}, parts...)
	}
	content := strings.Join(parts, "\n\n")
	p.prefix = lastWords(content, p.overlap)
	p.blocks = nil
	p.words = 0
	return content, true
}

// splitBlocks splits section lines into paragraphs and whole fenced code
// blocks.
func splitBlocks(lines []string) []string {
	var (
		blocks []string
		cur    []string
		fence  string
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		block := strings.TrimRight(strings.Join(cur, "\n"), " \t")
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
		cur = nil
	}

	for _, line := range lines {
		marker := fenceMarker(line)
		switch {
		case fence != "":
			cur = append(cur, line)
			if marker != "" && strings.HasPrefix(marker, fence) {
				fence = ""
				flush()
			}
		case marker != "":
			flush()
			fence = marker
			cur = append(cur, line)
		case strings.TrimSpace(line) == "":
			flush()
		default:
			cur = append(cur, line)
		}
	}
	flush()
	return blocks
}

// splitOversized splits a block with more than budget words. Code blocks are
// split by lines and each piece is re-fenced; prose is split by words.
func splitOversized(block string, budget int) []string {
	if len(strings.Fields(block)) <= budget {
		return []string{block}
	}

	lines := strings.Split(block, "\n")
	marker := fenceMarker(lines[0])
	if marker == "" || budget <= 2 {
		return wordWindows(block, budget)
	}

	open, closing := lines[0], marker
	body := lines[1:]
	if n := len(body); n > 0 && fenceMarker(body[n-1]) != "" {
		closing = body[n-1]
		body = body[:n-1]
	}

	var pieces []string
	for _, part := range packLines(body, budget-2) {
		pieces = append(pieces, open+"\n"+part+"\n"+closing)
	}
	return pieces
}

// packLines groups lines into pieces of at most budget words, splitting
// single lines that are too long by words.
func packLines(lines []string, budget int) []string {
	var (
		pieces []string
		cur    []string
		words  int
	)
	for _, line := range lines {
		n := len(strings.Fields(line))
		if n > budget {
			if len(cur) > 0 {
				pieces = append(pieces, strings.Join(cur, "\n"))
				cur, words = nil, 0
			}
			pieces = append(pieces, wordWindows(line, budget)...)
			continue
		}
		if words+n > budget && len(cur) > 0 {
			pieces = append(pieces, strings.Join(cur, "\n"))
			cur, words = nil, 0
		}
		cur = append(cur, line)
		words += n
	}
	if len(cur) > 0 {
		pieces = append(pieces, strings.Join(cur, "\n"))
	}
	return pieces
}

func wordWindows(text string, size int) []string {
	words := strings.Fields(text)
	var windows []string
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		windows = append(windows, strings.Join(words[start:end], " "))
	}
	return windows
}

func lastWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
