package idedocs

import (
	"context"
	"time"
)

// IDEManifest summarizes a tool's preferred prompt format, documentation
// sources and templates. It is rebuilt wholesale, never patched.
type IDEManifest struct {
	ToolID           string          `json:"tool_id"`
	ToolName         string          `json:"tool_name"`
	DocVersion       string          `json:"doc_version"`
	DocSources       []string        `json:"doc_sources"`
	PreferredFormat  Format          `json:"preferred_format"`
	Confidence       int             `json:"confidence"`
	DetectionMethods []string        `json:"detection_methods"`
	FallbackFormats  []FormatScore   `json:"fallback_formats"`
	Templates        []Template      `json:"templates"`
	Validation       ValidationRules `json:"validation"`
	Trusted          bool            `json:"trusted"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// Template renders a prompt in a given format. Body uses Go text/template
// syntax with the fields of PromptData.
type Template struct {
	Format Format `json:"format"`
	Body   string `json:"body"`
}

// PromptData is the data a manifest Template is executed with.
type PromptData struct {
	Tool        string
	Task        string
	Context     string
	Constraints []string
}

// ValidationRules describes how prompts in the preferred format are checked.
type ValidationRules struct {
	Format           Format   `json:"format"`
	MaxPromptTokens  int      `json:"max_prompt_tokens"`
	RequiredSections []string `json:"required_sections,omitempty"`
	MustParseAs      string   `json:"must_parse_as,omitempty"`
	ForbiddenPattern []string `json:"forbidden_patterns,omitempty"`
}

// ManifestService represents a service for storing manifests.
type ManifestService interface {
	// SaveManifest replaces the stored manifest of m.ToolID.
	SaveManifest(ctx context.Context, m *IDEManifest) error

	// FindManifest retrieves the manifest of a tool.
	// Returns ENOTFOUND if none has been built.
	FindManifest(ctx context.Context, toolID string) (*IDEManifest, error)
}
