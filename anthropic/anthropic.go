// Package anthropic implements chat completion with Anthropic Claude models.
package anthropic

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fwojciec/idedocs"
	idedocshttp "github.com/fwojciec/idedocs/http"
)

// DefaultModel is used when no model is configured.
const DefaultModel = anthropic.ModelClaudeHaiku4_5

// DefaultMaxTokens is sent when a request does not bound its output; the
// Messages API requires a limit.
const DefaultMaxTokens = 1024

// NewClient returns an Anthropic client. Retries are left to the caller's
// retry policy.
// Returns ECONFIG if apiKey is empty.
func NewClient(apiKey string, opts ...option.RequestOption) (*anthropic.Client, error) {
	if apiKey == "" {
		return nil, idedocs.Errorf(idedocs.ECONFIG, "ANTHROPIC_API_KEY is not set")
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(opts...)
	return &client, nil
}

var _ idedocs.Completer = (*Completer)(nil)

// Completer implements idedocs.Completer with the Messages API.
type Completer struct {
	client *anthropic.Client
	Model  anthropic.Model
}

// NewCompleter returns a Completer for model, or DefaultModel if empty.
func NewCompleter(client *anthropic.Client, model string) *Completer {
	m := anthropic.Model(model)
	if m == "" {
		m = DefaultModel
	}
	return &Completer{client: client, Model: m}
}

// Complete sends the conversation and joins the text blocks of the reply.
func (c *Completer) Complete(ctx context.Context, req idedocs.CompletionRequest) (*idedocs.Completion, error) {
	params, err := BuildParams(c.Model, req)
	if err != nil {
		return nil, err
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, translate(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &idedocs.Completion{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// BuildParams converts a request to Messages API parameters. System
// messages in the conversation are appended to the system prompt, since the
// API only accepts user and assistant turns.
func BuildParams(model anthropic.Model, req idedocs.CompletionRequest) (anthropic.MessageNewParams, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = append(params.System, anthropic.TextBlockParam{Text: req.System})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case idedocs.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case idedocs.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return params, idedocs.Errorf(idedocs.EINVALID, "completion needs at least one message")
	}
	return params, nil
}

// translate maps an SDK error to an application error. Context errors are
// returned unchanged.
func translate(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var hint time.Duration
		if apiErr.Response != nil {
			hint = idedocshttp.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		status := apiErr.StatusCode
		// 529 means the API is overloaded.
		return idedocs.StatusError(status, hint, "anthropic completion: %d %s", status, http.StatusText(status))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return idedocs.Errorf(idedocs.EUNAVAILABLE, "anthropic completion: %v", err)
	}
	return idedocs.Errorf(idedocs.EINTERNAL, "anthropic completion: %v", err)
}
