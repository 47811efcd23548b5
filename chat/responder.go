// Package chat answers questions about a tool's documentation with a
// language model grounded in retrieved context.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/retry"
)

// GenericFailure is the only failure detail returned to chat users.
const GenericFailure = "The assistant is unavailable right now. Please try again later."

// Confidence thresholds on the mean similarity of cited sources.
const (
	HighConfidence   = 0.80
	MediumConfidence = 0.65
)

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

var _ idedocs.Responder = (*Responder)(nil)

// Responder implements idedocs.Responder.
type Responder struct {
	Completer idedocs.Completer

	// Tokens estimates usage when the provider reports none. Optional.
	Tokens idedocs.TokenCounter

	Retry       retry.Policy
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// NewResponder returns a Responder with the default retry policy.
func NewResponder(c idedocs.Completer) *Responder {
	return &Responder{
		Completer:   c,
		Retry:       retry.DefaultPolicy().WithAttempts(3),
		MaxTokens:   1024,
		Temperature: 0.2,
	}
}

func (r *Responder) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// GenerateResponse answers the last user message from req.Context.
//
// Configuration errors and cancellation are returned as is. Any other
// provider failure is logged and reported as EUNAVAILABLE with
// GenericFailure as the message.
func (r *Responder) GenerateResponse(ctx context.Context, req idedocs.ChatRequest) (*idedocs.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, idedocs.Errorf(idedocs.EINVALID, "messages required")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != idedocs.RoleUser || strings.TrimSpace(last.Content) == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "conversation must end with a user question")
	}

	creq := idedocs.CompletionRequest{
		System:      SystemPrompt(req.ToolName, req.Context),
		Messages:    req.Messages,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	}
	policy := r.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		r.logger().Warn("retrying completion", "attempt", attempt, "delay", delay, "err", err)
	}
	completion, err := retry.Value(ctx, policy, func(ctx context.Context) (*idedocs.Completion, error) {
		return r.Completer.Complete(ctx, creq)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if idedocs.ErrorCode(err) == idedocs.ECONFIG {
			return nil, err
		}
		r.logger().Error("chat completion failed", "tool", req.ToolName, "err", err)
		return nil, idedocs.Errorf(idedocs.EUNAVAILABLE, GenericFailure)
	}

	in, out := completion.InputTokens, completion.OutputTokens
	if in == 0 && out == 0 && r.Tokens != nil {
		in, out = r.countUsage(ctx, creq, completion.Text)
	}

	return &idedocs.ChatResponse{
		Response:   completion.Text,
		Sources:    req.Sources,
		TokensUsed: in + out,
		Metadata: idedocs.ChatMetadata{
			Model:        completion.Model,
			Confidence:   Bucket(completion.Text, req.Sources),
			InputTokens:  in,
			OutputTokens: out,
		},
	}, nil
}

// countUsage estimates token usage; counting failures yield zero.
func (r *Responder) countUsage(ctx context.Context, req idedocs.CompletionRequest, reply string) (int, int) {
	var prompt strings.Builder
	prompt.WriteString(req.System)
	for _, m := range req.Messages {
		prompt.WriteString("\n")
		prompt.WriteString(m.Content)
	}
	in, err := r.Tokens.CountTokens(ctx, prompt.String())
	if err != nil {
		r.logger().Debug("token count failed", "err", err)
		return 0, 0
	}
	out, err := r.Tokens.CountTokens(ctx, reply)
	if err != nil {
		r.logger().Debug("token count failed", "err", err)
		return in, 0
	}
	return in, out
}

// SystemPrompt returns the instructions and context sent with every
// question.
func SystemPrompt(toolName, docs string) string {
	var sb strings.Builder
	name := toolName
	if name == "" {
		name = "this tool"
	}
	fmt.Fprintf(&sb, "You are a helpful assistant answering questions about %s.\n", name)
	sb.WriteString("Answer only from the documentation excerpts below. ")
	sb.WriteString("Cite the excerpts you use by their number in square brackets, e.g. [1]. ")
	sb.WriteString("If the excerpts do not contain the answer, say so instead of guessing.\n\n")
	sb.WriteString("<documentation>\n")
	if docs == "" {
		sb.WriteString("(no relevant documentation found)\n")
	} else {
		sb.WriteString(docs)
		sb.WriteString("\n")
	}
	sb.WriteString("</documentation>")
	return sb.String()
}

// Bucket returns the confidence of an answer from the mean score of the
// sources it cites. An answer citing nothing is low confidence.
func Bucket(answer string, sources []idedocs.Source) idedocs.Confidence {
	byIndex := make(map[int]float64, len(sources))
	for _, s := range sources {
		byIndex[s.Index] = s.Score
	}

	cited := make(map[int]bool)
	var sum float64
	for _, m := range citationRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || cited[n] {
			continue
		}
		score, ok := byIndex[n]
		if !ok {
			continue
		}
		cited[n] = true
		sum += score
	}
	if len(cited) == 0 {
		return idedocs.ConfidenceLow
	}

	switch mean := sum / float64(len(cited)); {
	case mean >= HighConfidence:
		return idedocs.ConfidenceHigh
	case mean >= MediumConfidence:
		return idedocs.ConfidenceMedium
	default:
		return idedocs.ConfidenceLow
	}
}
