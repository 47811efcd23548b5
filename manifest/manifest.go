// Package manifest assembles per-tool manifests from a format detection
// result and the tool's stored chunks.
package manifest

import (
	"net/url"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/fwojciec/idedocs"
)

// DefaultTrustedDomains are documentation hosts trusted without
// configuration. Subdomains of these are trusted as well.
var DefaultTrustedDomains = []string{
	"code.visualstudio.com",
	"docs.anthropic.com",
	"docs.cursor.com",
	"docs.github.com",
	"github.com",
	"jetbrains.com",
	"neovim.io",
	"zed.dev",
}

// Builder builds manifests. Its output depends only on its inputs and the
// clock.
type Builder struct {
	// TrustedDomains lists hosts whose documentation is trusted. A host
	// whose first label is "docs" is trusted regardless.
	TrustedDomains []string

	Now func() time.Time
}

// NewBuilder returns a Builder with the default trusted domains.
func NewBuilder() *Builder {
	return &Builder{
		TrustedDomains: DefaultTrustedDomains,
		Now:            time.Now,
	}
}

// Build assembles the manifest of a tool from a detection result and the
// tool's chunks restricted to version. An empty version selects the most
// common version among the chunks, the greatest on ties.
//
// Returns EINVALID if the detection result is invalid, a chunk belongs to
// another tool, or no chunk has the version.
func (b *Builder) Build(toolID, toolName string, detection *idedocs.FormatDetectionResult, chunks []*idedocs.Chunk, version string) (*idedocs.IDEManifest, error) {
	if toolID == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "tool ID required")
	}
	if detection == nil {
		return nil, idedocs.Errorf(idedocs.EINVALID, "format detection result required")
	}
	if err := detection.Validate(); err != nil {
		return nil, err
	}
	for _, ch := range chunks {
		if ch.ToolID != toolID {
			return nil, idedocs.Errorf(idedocs.EINVALID, "chunk %s belongs to tool %s", ch.ID, ch.ToolID)
		}
	}

	if version == "" {
		version = commonVersion(chunks)
	}
	var sources []string
	for _, ch := range chunks {
		if ch.DocVersion == version {
			sources = append(sources, ch.SourceURL)
		}
	}
	if len(sources) == 0 {
		return nil, idedocs.Errorf(idedocs.EINVALID, "no chunks for version %q", version)
	}
	slices.Sort(sources)
	sources = slices.Compact(sources)

	var templates []idedocs.Template
	seen := make(map[idedocs.Format]bool)
	formats := []idedocs.Format{detection.PreferredFormat}
	for _, fb := range detection.FallbackFormats {
		formats = append(formats, fb.Format)
	}
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true
		t, err := TemplateFor(f)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	rules, err := RulesFor(detection.PreferredFormat)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	return &idedocs.IDEManifest{
		ToolID:           toolID,
		ToolName:         toolName,
		DocVersion:       version,
		DocSources:       sources,
		PreferredFormat:  detection.PreferredFormat,
		Confidence:       detection.ConfidenceScore,
		DetectionMethods: slices.Clone(detection.DetectionMethodsUsed),
		FallbackFormats:  append([]idedocs.FormatScore{}, detection.FallbackFormats...),
		Templates:        templates,
		Validation:       rules,
		Trusted:          b.trusted(sources),
		LastUpdated:      now().UTC(),
	}, nil
}

// commonVersion returns the most frequent DocVersion, the greatest on ties.
func commonVersion(chunks []*idedocs.Chunk) string {
	counts := make(map[string]int)
	for _, ch := range chunks {
		counts[ch.DocVersion]++
	}
	best, bestCount := "", 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v > best) {
			best, bestCount = v, n
		}
	}
	return best
}

// trusted reports whether every source is served over https from a trusted
// host.
func (b *Builder) trusted(sources []string) bool {
	for _, s := range sources {
		u, err := url.Parse(s)
		if err != nil || u.Scheme != "https" || !b.trustedHost(strings.ToLower(u.Hostname())) {
			return false
		}
	}
	return len(sources) > 0
}

func (b *Builder) trustedHost(host string) bool {
	if strings.HasPrefix(host, "docs.") && strings.Count(host, ".") >= 2 {
		return true
	}
	for _, d := range b.TrustedDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Equal reports whether two manifests are identical apart from
// LastUpdated.
func Equal(a, b *idedocs.IDEManifest) bool {
	if a == nil || b == nil {
		return a == b
	}
	x, y := *a, *b
	x.LastUpdated, y.LastUpdated = time.Time{}, time.Time{}
	return reflect.DeepEqual(normalize(x), normalize(y))
}

// normalize maps empty slices to nil so that a manifest read back from
// storage compares equal to a freshly built one.
func normalize(m idedocs.IDEManifest) idedocs.IDEManifest {
	if len(m.DocSources) == 0 {
		m.DocSources = nil
	}
	if len(m.DetectionMethods) == 0 {
		m.DetectionMethods = nil
	}
	if len(m.FallbackFormats) == 0 {
		m.FallbackFormats = nil
	}
	if len(m.Templates) == 0 {
		m.Templates = nil
	}
	if len(m.Validation.RequiredSections) == 0 {
		m.Validation.RequiredSections = nil
	}
	if len(m.Validation.ForbiddenPattern) == 0 {
		m.Validation.ForbiddenPattern = nil
	}
	return m
}
