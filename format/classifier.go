package format

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/retry"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var _ idedocs.Classifier = (*LLMClassifier)(nil)

// DefaultMaxSampleChars bounds the documentation sample sent to the model.
const DefaultMaxSampleChars = 8000

// classification is the JSON object the model must return. It is decoded
// from untrusted text and validated before use.
type classification struct {
	PreferredFormat      string     `json:"preferred_format" validate:"required,oneof=json markdown plaintext cli xml custom" jsonschema:"enum=json,enum=markdown,enum=plaintext,enum=cli,enum=xml,enum=custom"`
	ConfidenceScore      *float64   `json:"confidence_score" validate:"required" jsonschema:"minimum=0,maximum=100"`
	DetectionMethodsUsed methods    `json:"detection_methods_used" validate:"required" jsonschema:"description=Signals the decision is based on"`
	FallbackFormats      []fallback `json:"fallback_formats" validate:"omitempty,dive" jsonschema:"maxItems=3"`
}

// maxModelMethods bounds the detection methods kept from a response.
const maxModelMethods = 8

// methods decodes a JSON array keeping only non-empty strings. A missing
// or null field stays nil.
type methods []string

func (m *methods) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := methods{}
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	*m = out
	return nil
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n?(.*?)```")

type fallback struct {
	Format     string   `json:"format" validate:"required,oneof=json markdown plaintext cli xml custom" jsonschema:"enum=json,enum=markdown,enum=plaintext,enum=cli,enum=xml,enum=custom"`
	Confidence *float64 `json:"confidence" validate:"required" jsonschema:"minimum=0,maximum=100"`
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	responseSchema = func() string {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		b, err := json.MarshalIndent(r.Reflect(&classification{}), "", "  ")
		if err != nil {
			panic(err)
		}
		return string(b)
	}()

	promptTemplate = template.Must(template.New("classify").Parse(`Classify the preferred prompt format of the software tool "{{.ToolID}}" from the documentation sample below.

Choose preferred_format from: {{.Formats}}.
- json: the tool expects structured JSON input or configuration.
- markdown: the tool works best with headed, sectioned markdown prompts.
- plaintext: free-form prose without structure.
- cli: the tool is driven by shell commands and flags.
- xml: the tool expects XML-tagged input.
- custom: the tool defines its own syntax or template language.

Reply with a single JSON object matching this schema and nothing else:
{{.Schema}}

Documentation sample:
<<<
{{.Sample}}
>>>`))
)

// LLMClassifier classifies documentation format with a chat model.
type LLMClassifier struct {
	Completer idedocs.Completer

	// MaxRetries is the number of additional attempts after a failed or
	// malformed response.
	MaxRetries     int
	Retry          retry.Policy
	MaxSampleChars int
	Logger         *slog.Logger
}

// NewLLMClassifier returns a classifier with three retries and the default
// backoff.
func NewLLMClassifier(c idedocs.Completer) *LLMClassifier {
	return &LLMClassifier{
		Completer:      c,
		MaxRetries:     3,
		Retry:          retry.DefaultPolicy(),
		MaxSampleChars: DefaultMaxSampleChars,
	}
}

// Classify asks the model for a classification. Malformed responses are
// retried; the last error is EINVALID if every attempt was malformed.
// ECONFIG is returned at once.
func (c *LLMClassifier) Classify(ctx context.Context, toolID, sample string) (*idedocs.FormatDetectionResult, error) {
	prompt, err := c.prompt(toolID, sample)
	if err != nil {
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := c.Retry.WithAttempts(max(c.MaxRetries, 0) + 1)
	policy.ShouldRetry = func(err error) bool {
		return idedocs.ErrorCode(err) == idedocs.EINVALID || idedocs.IsRetryable(err)
	}
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Debug("retrying classification", "tool", toolID, "attempt", attempt, "delay", delay, "err", err)
	}

	return retry.Value(ctx, policy, func(ctx context.Context) (*idedocs.FormatDetectionResult, error) {
		completion, err := c.Completer.Complete(ctx, idedocs.CompletionRequest{
			Messages:    []idedocs.Message{{Role: idedocs.RoleUser, Content: prompt}},
			MaxTokens:   512,
			Temperature: 0,
		})
		if err != nil {
			return nil, err
		}
		return ParseClassification(completion.Text)
	})
}

func (c *LLMClassifier) prompt(toolID, sample string) (string, error) {
	limit := c.MaxSampleChars
	if limit <= 0 {
		limit = DefaultMaxSampleChars
	}
	if len(sample) > limit {
		sample = strings.ToValidUTF8(sample[:limit], "")
	}

	names := make([]string, len(idedocs.Formats))
	for i, f := range idedocs.Formats {
		names[i] = string(f)
	}

	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, map[string]string{
		"ToolID":  toolID,
		"Formats": strings.Join(names, ", "),
		"Schema":  responseSchema,
		"Sample":  sample,
	})
	return buf.String(), err
}

// ParseClassification extracts and validates the JSON object in a model
// response. Markdown fences and surrounding prose are tolerated. Unknown
// formats, missing fields and non-JSON responses are EINVALID; confidences
// are clamped to [0,100]; fallbacks are deduplicated, sorted and truncated.
func ParseClassification(raw string) (*idedocs.FormatDetectionResult, error) {
	c, err := decodeClassification(raw)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(c); err != nil {
		return nil, idedocs.Errorf(idedocs.EINVALID, "classifier response failed validation: %v", err)
	}

	result := &idedocs.FormatDetectionResult{
		PreferredFormat:      idedocs.Format(c.PreferredFormat),
		ConfidenceScore:      clampScore(*c.ConfidenceScore),
		DetectionMethodsUsed: []string{idedocs.MethodLLM},
	}
	for _, m := range c.DetectionMethodsUsed {
		if len(result.DetectionMethodsUsed) > maxModelMethods {
			break
		}
		if !slices.Contains(result.DetectionMethodsUsed, m) {
			result.DetectionMethodsUsed = append(result.DetectionMethodsUsed, m)
		}
	}

	seen := map[idedocs.Format]bool{result.PreferredFormat: true}
	fallbacks := []idedocs.FormatScore{}
	for _, fb := range c.FallbackFormats {
		f := idedocs.Format(fb.Format)
		if seen[f] {
			continue
		}
		seen[f] = true
		fallbacks = append(fallbacks, idedocs.FormatScore{Format: f, Confidence: clampScore(*fb.Confidence)})
	}
	SortScores(fallbacks)
	if len(fallbacks) > idedocs.MaxFallbackFormats {
		fallbacks = fallbacks[:idedocs.MaxFallbackFormats]
	}
	result.FallbackFormats = fallbacks

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// decodeClassification decodes the first JSON object of raw. Fenced blocks
// are tried before the text as a whole, so braces in prose ahead of a
// fence do not hide the answer.
func decodeClassification(raw string) (*classification, error) {
	var candidates []string
	for _, m := range fenceRe.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, raw)

	err := idedocs.Errorf(idedocs.EINVALID, "classifier response contains no JSON object")
	for _, text := range candidates {
		start := strings.Index(text, "{")
		if start < 0 {
			continue
		}
		var c classification
		if derr := json.NewDecoder(strings.NewReader(text[start:])).Decode(&c); derr != nil {
			err = idedocs.Errorf(idedocs.EINVALID, "classifier response is not valid JSON: %v", derr)
			continue
		}
		return &c, nil
	}
	return nil, err
}

func clampScore(f float64) int {
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f + 0.5)
}
