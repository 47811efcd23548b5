package idedocs

import (
	"context"
	"slices"
)

// Format is the preferred prompt format of a tool.
type Format string

// Formats form a closed set; values outside it are rejected at every
// boundary.
const (
	FormatJSON      Format = "json"
	FormatMarkdown  Format = "markdown"
	FormatPlaintext Format = "plaintext"
	FormatCLI       Format = "cli"
	FormatXML       Format = "xml"
	FormatCustom    Format = "custom"
)

// Formats lists every valid Format in a stable order.
var Formats = []Format{FormatJSON, FormatMarkdown, FormatPlaintext, FormatCLI, FormatXML, FormatCustom}

// Detection methods recorded in FormatDetectionResult.DetectionMethodsUsed.
const (
	MethodHeuristic         = "heuristic"
	MethodLLM               = "llm"
	MethodLLMFallbackFailed = "llm_fallback_failed"
)

// MaxFallbackFormats bounds FormatDetectionResult.FallbackFormats.
const MaxFallbackFormats = 3

// Valid reports whether f is one of Formats.
func (f Format) Valid() bool {
	return slices.Contains(Formats, f)
}

// ParseFormat returns the Format named s.
// Returns EINVALID if s is not a known format.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if !f.Valid() {
		return "", Errorf(EINVALID, "unknown format %q", s)
	}
	return f, nil
}

// FormatScore is a format with its confidence in [0,100].
type FormatScore struct {
	Format     Format `json:"format"`
	Confidence int    `json:"confidence"`
}

// FormatDetectionResult is the outcome of a format detection run.
type FormatDetectionResult struct {
	PreferredFormat      Format        `json:"preferred_format"`
	ConfidenceScore      int           `json:"confidence_score"`
	DetectionMethodsUsed []string      `json:"detection_methods_used"`
	FallbackFormats      []FormatScore `json:"fallback_formats"`
}

// Validate returns an error if the result breaks its invariants.
func (r *FormatDetectionResult) Validate() error {
	if !r.PreferredFormat.Valid() {
		return Errorf(EINVALID, "unknown preferred format %q", r.PreferredFormat)
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		return Errorf(EINVALID, "confidence %d out of range", r.ConfidenceScore)
	}
	if len(r.DetectionMethodsUsed) == 0 {
		return Errorf(EINVALID, "detection methods required")
	}
	if len(r.FallbackFormats) > MaxFallbackFormats {
		return Errorf(EINVALID, "at most %d fallback formats allowed", MaxFallbackFormats)
	}
	for _, fb := range r.FallbackFormats {
		if !fb.Format.Valid() {
			return Errorf(EINVALID, "unknown fallback format %q", fb.Format)
		}
		if fb.Confidence < 0 || fb.Confidence > 100 {
			return Errorf(EINVALID, "fallback confidence %d out of range", fb.Confidence)
		}
	}
	return nil
}

// ClampConfidence limits c to [0,100].
func ClampConfidence(c int) int {
	return min(max(c, 0), 100)
}

// FormatDetector infers the preferred prompt format of a tool from a sample
// of its documentation.
type FormatDetector interface {
	DetectFormat(ctx context.Context, toolID, sample string) (*FormatDetectionResult, error)
}

// Classifier classifies documentation format with a language model.
// Results are validated; malformed model output is reported as EINVALID.
type Classifier interface {
	Classify(ctx context.Context, toolID, sample string) (*FormatDetectionResult, error)
}
