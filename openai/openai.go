// Package openai implements embedding and chat completion with the OpenAI
// API.
package openai

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/fwojciec/idedocs"
	idedocshttp "github.com/fwojciec/idedocs/http"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default models.
const (
	DefaultChatModel      = openai.ChatModelGPT4oMini
	DefaultEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
)

// NewClient returns an OpenAI client. Retries are left to the caller's
// retry policy.
// Returns ECONFIG if apiKey is empty.
func NewClient(apiKey string, opts ...option.RequestOption) (*openai.Client, error) {
	if apiKey == "" {
		return nil, idedocs.Errorf(idedocs.ECONFIG, "OPENAI_API_KEY is not set")
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(opts...)
	return &client, nil
}

// translate maps an SDK error to an application error. Context errors are
// returned unchanged.
func translate(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var hint time.Duration
		if apiErr.Response != nil {
			hint = idedocshttp.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Type
		}
		return idedocs.StatusError(apiErr.StatusCode, hint, "openai %s: %s", op, msg)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return idedocs.Errorf(idedocs.EUNAVAILABLE, "openai %s: %v", op, err)
	}
	return idedocs.Errorf(idedocs.EINTERNAL, "openai %s: %v", op, err)
}
