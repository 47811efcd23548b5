package gemini

import (
	"context"

	"github.com/fwojciec/idedocs"
	"google.golang.org/genai"
)

var _ idedocs.Completer = (*Completer)(nil)

// Completer implements idedocs.Completer with Gemini chat models.
type Completer struct {
	client *genai.Client
	Model  string
}

// NewCompleter returns a Completer for model, or DefaultChatModel if empty.
func NewCompleter(client *genai.Client, model string) *Completer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Completer{client: client, Model: model}
}

// Complete sends the conversation and returns the first candidate's text.
func (c *Completer) Complete(ctx context.Context, req idedocs.CompletionRequest) (*idedocs.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, idedocs.Errorf(idedocs.EINVALID, "completion needs at least one message")
	}

	result, err := c.client.Models.GenerateContent(ctx, c.Model, BuildContents(req.Messages), BuildConfig(req))
	if err != nil {
		return nil, translate(err, "completion")
	}
	if result == nil {
		return nil, idedocs.Errorf(idedocs.EINTERNAL, "gemini returned nil result")
	}

	completion := &idedocs.Completion{
		Text:  result.Text(),
		Model: result.ModelVersion,
	}
	if completion.Model == "" {
		completion.Model = c.Model
	}
	if u := result.UsageMetadata; u != nil {
		completion.InputTokens = int(u.PromptTokenCount)
		completion.OutputTokens = int(u.CandidatesTokenCount)
	}
	return completion, nil
}

// BuildConfig returns the GenerateContentConfig for a request.
func BuildConfig(req idedocs.CompletionRequest) *genai.GenerateContentConfig {
	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	return config
}

// BuildContents converts conversation messages to Gemini contents. Gemini
// only knows user and model turns, so anything but an assistant message is
// sent as a user turn.
func BuildContents(msgs []idedocs.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == idedocs.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
