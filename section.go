package idedocs

import (
	"regexp"
	"strings"
	"unicode"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)(?:\s+#+)?\s*$`)

// SectionURL links a chunk's source page to the heading it came from.
// section is the heading breadcrumb; the anchor is derived from its last
// entry the way documentation generators derive heading IDs. URLs that
// already carry a fragment, and chunks outside any heading, are returned
// unchanged.
func SectionURL(sourceURL, section string) string {
	if section == "" || strings.Contains(sourceURL, "#") {
		return sourceURL
	}
	parts := strings.Split(section, " > ")
	anchor := Anchor(parts[len(parts)-1])
	if anchor == "" {
		return sourceURL
	}
	return sourceURL + "#" + anchor
}

// section is a heading and the markdown lines up to the next heading.
type section struct {
	level int // 0 for text before the first heading
	title string
	label string // breadcrumb of enclosing headings
	lines []string
}

// splitSections splits markdown at headings that are not inside fenced code.
func splitSections(markdown string) []section {
	var (
		sections []section
		cur      = section{}
		trail    []string // titles indexed by level-1
		fence    string
	)

	for _, line := range strings.Split(markdown, "\n") {
		if fence == "" {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				if cur.level > 0 || len(cur.lines) > 0 {
					sections = append(sections, cur)
				}
				level := len(m[1])
				title := strings.TrimSpace(m[2])
				if len(trail) >= level {
					trail = trail[:level-1]
				}
				for len(trail) < level-1 {
					trail = append(trail, "")
				}
				trail = append(trail, title)
				cur = section{
					level: level,
					title: title,
					label: breadcrumb(trail),
					lines: []string{line},
				}
				continue
			}
		}
		if marker := fenceMarker(line); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(marker, fence):
				fence = ""
			}
		}
		cur.lines = append(cur.lines, line)
	}
	if cur.level > 0 || len(cur.lines) > 0 {
		sections = append(sections, cur)
	}
	return sections
}

// fenceMarker returns the fence characters opening a code fence on line,
// or "" if line is not a fence.
func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return ""
	}
	for _, c := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, c) {
			n := len(trimmed) - len(strings.TrimLeft(trimmed, c[:1]))
			return trimmed[:n]
		}
	}
	return ""
}

func breadcrumb(trail []string) string {
	parts := make([]string, 0, len(trail))
	for _, t := range trail {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " > ")
}

// Anchor turns a heading title into a URL fragment: lower-case letters
// and digits, with runs of spaces and hyphens collapsed to one hyphen.
func Anchor(title string) string {
	var sb strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			sb.WriteRune(r)
			hyphen = false
		case (unicode.IsSpace(r) || r == '-') && !hyphen && sb.Len() > 0:
			sb.WriteRune('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
