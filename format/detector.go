// Package format infers the preferred prompt format of a tool from its
// documentation: a heuristic stage first, a language model when the
// heuristic is unsure.
package format

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fwojciec/idedocs"
)

var _ idedocs.FormatDetector = (*Detector)(nil)

// Config controls when the model is consulted and how its failure is
// reported.
type Config struct {
	// MinConfidence is the heuristic confidence at or above which the
	// model is not consulted.
	MinConfidence int

	// FallbackConfidenceCap caps the confidence of a heuristic result
	// returned because the model failed.
	FallbackConfidenceCap int

	EnableLLM bool
}

// DefaultConfig returns a threshold of 70 and a fallback cap of 50 with the
// model enabled.
func DefaultConfig() Config {
	return Config{
		MinConfidence:         70,
		FallbackConfidenceCap: 50,
		EnableLLM:             true,
	}
}

// Detector implements idedocs.FormatDetector.
type Detector struct {
	Scorer     Scorer
	Classifier idedocs.Classifier // nil disables the model stage
	Config     Config
	Logger     *slog.Logger
}

// NewDetector returns a Detector using the goldmark heuristic and the
// given classifier.
func NewDetector(classifier idedocs.Classifier) *Detector {
	return &Detector{
		Scorer:     NewHeuristic(),
		Classifier: classifier,
		Config:     DefaultConfig(),
	}
}

// DetectFormat scores sample heuristically and, when the best score is
// below MinConfidence, asks the classifier. A heuristic score equal to
// MinConfidence wins. If the classifier fails the heuristic result is
// returned with its confidence capped and the failure recorded in
// DetectionMethodsUsed. ECONFIG from the classifier is returned.
func (d *Detector) DetectFormat(ctx context.Context, toolID, sample string) (*idedocs.FormatDetectionResult, error) {
	if strings.TrimSpace(sample) == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "documentation sample required")
	}

	heuristic := fromScores(d.Scorer.Score(sample))
	if heuristic.ConfidenceScore >= d.Config.MinConfidence || !d.Config.EnableLLM || d.Classifier == nil {
		return heuristic, nil
	}

	llm, err := d.Classifier.Classify(ctx, toolID, sample)
	if err == nil {
		err = llm.Validate()
	}
	if err == nil {
		return llm, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if idedocs.ErrorCode(err) == idedocs.ECONFIG {
		return nil, err
	}

	d.logger().Warn("format classifier failed, using heuristic result", "tool", toolID, "err", err)
	heuristic.ConfidenceScore = min(heuristic.ConfidenceScore, d.Config.FallbackConfidenceCap)
	heuristic.DetectionMethodsUsed = []string{idedocs.MethodHeuristic, idedocs.MethodLLMFallbackFailed}
	return heuristic, nil
}

func (d *Detector) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// fromScores turns ranked heuristic scores into a result. Formats scored
// zero are not offered as fallbacks.
func fromScores(scores []idedocs.FormatScore) *idedocs.FormatDetectionResult {
	ranked := make([]idedocs.FormatScore, 0, len(scores))
	for _, s := range scores {
		if s.Format.Valid() {
			ranked = append(ranked, idedocs.FormatScore{Format: s.Format, Confidence: idedocs.ClampConfidence(s.Confidence)})
		}
	}
	SortScores(ranked)

	result := &idedocs.FormatDetectionResult{
		PreferredFormat:      idedocs.FormatPlaintext,
		DetectionMethodsUsed: []string{idedocs.MethodHeuristic},
		FallbackFormats:      []idedocs.FormatScore{},
	}
	if len(ranked) == 0 {
		return result
	}
	result.PreferredFormat = ranked[0].Format
	result.ConfidenceScore = ranked[0].Confidence
	for _, s := range ranked[1:] {
		if s.Confidence == 0 || len(result.FallbackFormats) == idedocs.MaxFallbackFormats {
			break
		}
		result.FallbackFormats = append(result.FallbackFormats, s)
	}
	return result
}
