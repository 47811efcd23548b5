package idedocs

import "context"

// TokenCounter counts tokens in text for a specific model.
// It is used when a completion provider does not report usage.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}
