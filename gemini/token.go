package gemini

import (
	"context"

	"github.com/fwojciec/idedocs"
	"google.golang.org/genai"
	"google.golang.org/genai/tokenizer"
)

var _ idedocs.TokenCounter = (*TokenCounter)(nil)

// TokenCounter reports prompt and reply sizes for chat usage accounting.
// Counting runs offline with the Gemini tokenizer, so it works whichever
// provider answered.
type TokenCounter struct {
	model string
	local *tokenizer.LocalTokenizer
}

// NewTokenCounter loads the tokenizer for model, or for
// DefaultTokenizerModel when model is empty. An unsupported model is
// ECONFIG.
func NewTokenCounter(model string) (*TokenCounter, error) {
	if model == "" {
		model = DefaultTokenizerModel
	}
	local, err := tokenizer.NewLocalTokenizer(model)
	if err != nil {
		return nil, idedocs.Errorf(idedocs.ECONFIG, "tokenizer for %s: %v", model, err)
	}
	return &TokenCounter{model: model, local: local}, nil
}

// Model returns the model whose vocabulary is used.
func (tc *TokenCounter) Model() string { return tc.model }

func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if text == "" {
		return 0, nil
	}
	res, err := tc.local.CountTokens([]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return 0, idedocs.Errorf(idedocs.EINTERNAL, "count tokens: %v", err)
	}
	return int(res.TotalTokens), nil
}
