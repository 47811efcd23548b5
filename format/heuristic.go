package format

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/fwojciec/idedocs"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Scorer assigns a confidence in [0,100] to every format for a sample.
type Scorer interface {
	Score(sample string) []idedocs.FormatScore
}

var (
	jsonKeyRe    = regexp.MustCompile(`"[\w.\-$@]+"\s*:`)
	closingTagRe = regexp.MustCompile(`</[A-Za-z][\w:.-]*>`)
	promptRe     = regexp.MustCompile(`(?m)^\s*(?:\$|PS>)\s+\S`)
	flagRe       = regexp.MustCompile(`(?:^|\s)--?[A-Za-z][\w-]*(?:[= ]\S+)?`)
	usageRe      = regexp.MustCompile(`(?i)\busage:`)

	mentionJSONRe      = regexp.MustCompile(`(?i)\bjson\b`)
	mentionXMLRe       = regexp.MustCompile(`(?i)\bxml\b`)
	mentionMarkdownRe  = regexp.MustCompile(`(?i)\bmarkdown\b`)
	mentionCLIRe       = regexp.MustCompile(`(?i)\bcommand[- ]line\b|\bCLI\b|\bterminal\b`)
	mentionPlaintextRe = regexp.MustCompile(`(?i)\bplain[- ]?text\b`)
	mentionCustomRe    = regexp.MustCompile(`(?i)\bDSL\b|\bcustom (?:format|syntax)\b|\btemplate language\b`)
)

var shellLanguages = []string{"bash", "sh", "shell", "zsh", "console", "terminal", "powershell", "ps1", "cmd", "fish"}

// signals are the structural features a sample is scored on.
type signals struct {
	lines      int // non-empty
	proseLines int

	headings   int
	listItems  int
	fences     int
	tables     int
	links      int
	quotes     int
	jsonFences int
	xmlFences  int
	shellFence int

	jsonKeys    int
	braces      int
	closingTags int
	prompts     int
	flags       int
	usage       bool

	wholeJSON bool
	wholeXML  bool

	mentions map[idedocs.Format]int
}

// Heuristic scores samples by markdown structure (parsed with goldmark)
// and format-specific patterns. It never calls a model.
type Heuristic struct {
	md goldmark.Markdown
}

// NewHeuristic returns a Heuristic that understands GitHub-flavored
// markdown.
func NewHeuristic() *Heuristic {
	return &Heuristic{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Score returns a confidence for every format, highest first. Ties keep
// the order of idedocs.Formats.
func (h *Heuristic) Score(sample string) []idedocs.FormatScore {
	s := h.collect(sample)
	scores := []idedocs.FormatScore{
		{Format: idedocs.FormatJSON, Confidence: scoreJSON(s)},
		{Format: idedocs.FormatMarkdown, Confidence: scoreMarkdown(s)},
		{Format: idedocs.FormatPlaintext, Confidence: scorePlaintext(s)},
		{Format: idedocs.FormatCLI, Confidence: scoreCLI(s)},
		{Format: idedocs.FormatXML, Confidence: scoreXML(s)},
		{Format: idedocs.FormatCustom, Confidence: scoreCustom(s)},
	}
	SortScores(scores)
	return scores
}

// SortScores orders scores by descending confidence, then by the order of
// idedocs.Formats.
func SortScores(scores []idedocs.FormatScore) {
	slices.SortStableFunc(scores, func(a, b idedocs.FormatScore) int {
		if a.Confidence != b.Confidence {
			return b.Confidence - a.Confidence
		}
		return slices.Index(idedocs.Formats, a.Format) - slices.Index(idedocs.Formats, b.Format)
	})
}

func (h *Heuristic) collect(sample string) *signals {
	src := []byte(sample)
	s := &signals{mentions: make(map[idedocs.Format]int)}

	doc := h.md.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			s.headings++
		case ast.KindListItem:
			s.listItems++
		case ast.KindLink, ast.KindAutoLink:
			s.links++
		case ast.KindBlockquote:
			s.quotes++
		case east.KindTable:
			s.tables++
		case ast.KindFencedCodeBlock:
			s.fences++
			lang := strings.ToLower(string(n.(*ast.FencedCodeBlock).Language(src)))
			switch {
			case lang == "json" || lang == "jsonc" || lang == "json5":
				s.jsonFences++
			case lang == "xml" || lang == "html" || lang == "svg":
				s.xmlFences++
			case slices.Contains(shellLanguages, lang):
				s.shellFence++
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for line := range strings.SplitSeq(sample, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		s.lines++
		if isProse(trimmed) {
			s.proseLines++
		}
		s.braces += strings.Count(trimmed, "{") + strings.Count(trimmed, "}")
	}

	s.jsonKeys = len(jsonKeyRe.FindAllStringIndex(sample, -1))
	s.closingTags = len(closingTagRe.FindAllStringIndex(sample, -1))
	s.prompts = len(promptRe.FindAllStringIndex(sample, -1))
	s.flags = len(flagRe.FindAllStringIndex(sample, -1))
	s.usage = usageRe.MatchString(sample)

	trimmed := strings.TrimSpace(sample)
	s.wholeJSON = (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed))
	s.wholeXML = strings.HasPrefix(trimmed, "<") && isXML(trimmed)

	s.mentions[idedocs.FormatJSON] = len(mentionJSONRe.FindAllStringIndex(sample, -1))
	s.mentions[idedocs.FormatXML] = len(mentionXMLRe.FindAllStringIndex(sample, -1))
	s.mentions[idedocs.FormatMarkdown] = len(mentionMarkdownRe.FindAllStringIndex(sample, -1))
	s.mentions[idedocs.FormatCLI] = len(mentionCLIRe.FindAllStringIndex(sample, -1))
	s.mentions[idedocs.FormatPlaintext] = len(mentionPlaintextRe.FindAllStringIndex(sample, -1))
	s.mentions[idedocs.FormatCustom] = len(mentionCustomRe.FindAllStringIndex(sample, -1))
	return s
}

// isProse reports whether a line reads like a sentence rather than
// markup or code.
func isProse(line string) bool {
	if strings.ContainsAny(line[:1], "#-*>|`{}<[$") {
		return false
	}
	words := strings.Fields(line)
	return len(words) >= 5
}

// isXML reports whether s is a single well-formed XML document.
func isXML(s string) bool {
	dec := xml.NewDecoder(strings.NewReader(s))
	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return roots == 1 && depth == 0
		}
		if err != nil {
			return false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}

func mentionScore(n, per, limit int) int {
	return min(n*per, limit)
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func scoreJSON(s *signals) int {
	if s.wholeJSON {
		return 95
	}
	score := int(ratio(s.jsonFences, s.fences) * 40)
	if s.jsonFences > 0 {
		score += 10
	}
	score += min(s.jsonKeys, 10) * 3
	if ratio(s.braces, s.lines) > 0.2 {
		score += 10
	}
	score += mentionScore(s.mentions[idedocs.FormatJSON], 5, 15)
	return idedocs.ClampConfidence(score)
}

func scoreXML(s *signals) int {
	if s.wholeXML {
		return 95
	}
	score := int(ratio(s.xmlFences, s.fences) * 40)
	if s.xmlFences > 0 {
		score += 10
	}
	score += min(s.closingTags, 10) * 3
	score += mentionScore(s.mentions[idedocs.FormatXML], 5, 15)
	return idedocs.ClampConfidence(score)
}

func scoreMarkdown(s *signals) int {
	score := 0
	if s.headings > 0 {
		score += 40 + min(s.headings, 5)*4
	}
	if s.listItems > 0 {
		score += 10 + min(s.listItems, 5)*2
	}
	if s.fences > 0 {
		score += 10
	}
	if s.tables > 0 {
		score += 5
	}
	if s.links > 0 || s.quotes > 0 {
		score += 5
	}
	score += mentionScore(s.mentions[idedocs.FormatMarkdown], 5, 10)
	return idedocs.ClampConfidence(score)
}

func scoreCLI(s *signals) int {
	score := int(ratio(s.shellFence, s.fences) * 40)
	score += min(s.prompts, 5) * 6
	score += min(s.flags, 10) * 3
	if s.usage {
		score += 10
	}
	score += mentionScore(s.mentions[idedocs.FormatCLI], 5, 15)
	return idedocs.ClampConfidence(score)
}

func scorePlaintext(s *signals) int {
	structured := s.headings+s.listItems+s.fences+s.tables > 0 || s.wholeJSON || s.wholeXML
	score := 0
	if structured {
		score = int(ratio(s.proseLines, s.lines) * 10)
	} else if s.lines > 0 {
		score = 25 + int(ratio(s.proseLines, s.lines)*40)
	}
	score += mentionScore(s.mentions[idedocs.FormatPlaintext], 5, 10)
	return idedocs.ClampConfidence(score)
}

func scoreCustom(s *signals) int {
	return idedocs.ClampConfidence(mentionScore(s.mentions[idedocs.FormatCustom], 10, 40))
}
