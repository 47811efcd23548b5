package openai

import (
	"context"

	"github.com/fwojciec/idedocs"
	"github.com/openai/openai-go"
)

var _ idedocs.Completer = (*Completer)(nil)

// Completer implements idedocs.Completer with OpenAI chat completions.
type Completer struct {
	client *openai.Client
	Model  openai.ChatModel
}

// NewCompleter returns a Completer for model, or DefaultChatModel if empty.
func NewCompleter(client *openai.Client, model string) *Completer {
	m := openai.ChatModel(model)
	if m == "" {
		m = DefaultChatModel
	}
	return &Completer{client: client, Model: m}
}

// Complete sends the conversation and returns the first choice.
func (c *Completer) Complete(ctx context.Context, req idedocs.CompletionRequest) (*idedocs.Completion, error) {
	if len(req.Messages) == 0 {
		return nil, idedocs.Errorf(idedocs.EINVALID, "completion needs at least one message")
	}

	params := openai.ChatCompletionNewParams{
		Messages:    BuildMessages(req),
		Model:       c.Model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, translate(err, "completion")
	}
	if len(resp.Choices) == 0 {
		return nil, idedocs.Errorf(idedocs.EINTERNAL, "openai returned no choices")
	}

	return &idedocs.Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// BuildMessages converts a request to chat messages, leading with the
// system prompt.
func BuildMessages(req idedocs.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case idedocs.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case idedocs.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}
