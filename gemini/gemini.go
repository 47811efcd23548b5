// Package gemini implements embedding, chat completion and token counting
// with Google Gemini.
package gemini

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/fwojciec/idedocs"
	"google.golang.org/genai"
)

// Default models.
const (
	DefaultChatModel      = "gemini-2.5-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"
	DefaultTokenizerModel = "gemini-2.0-flash"
)

// NewClient returns a Gemini API client.
// Returns ECONFIG if apiKey is empty.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*genai.Client, error) {
	if apiKey == "" {
		return nil, idedocs.Errorf(idedocs.ECONFIG, "GEMINI_API_KEY is not set")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, idedocs.Errorf(idedocs.ECONFIG, "gemini client: %v", err)
	}
	return client, nil
}

// Option configures the client created by NewClient.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = url
	}
}

// translate maps a genai error to an application error. Context errors are
// returned unchanged.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return idedocs.StatusError(apiErr.Code, retryDelay(apiErr.Details), "gemini %s: %s", op, apiErr.Message)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return idedocs.Errorf(idedocs.EUNAVAILABLE, "gemini %s: %v", op, err)
	}
	return idedocs.Errorf(idedocs.EINTERNAL, "gemini %s: %v", op, err)
}

// retryDelay reads the delay of a google.rpc.RetryInfo error detail.
func retryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		s, _ := d["retryDelay"].(string)
		if delay, err := time.ParseDuration(s); err == nil {
			return delay
		}
	}
	return 0
}
