package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/openai"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	status int
	header http.Header
	body   string
}

// newClients returns a Completer and an Embedder backed by handle.
func newClients(t *testing.T, handle func(path string, body map[string]any) fakeResponse) (*openai.Completer, *openai.Embedder) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		resp := handle(r.URL.Path, body)
		for k, v := range resp.header {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	t.Cleanup(server.Close)

	client, err := openai.NewClient("test-key", option.WithBaseURL(server.URL+"/"))
	require.NoError(t, err)
	return openai.NewCompleter(client, ""), openai.NewEmbedder(client)
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := openai.NewClient("")

	assert.Equal(t, idedocs.ECONFIG, idedocs.ErrorCode(err))
}

func TestCompleter_Complete(t *testing.T) {
	t.Parallel()

	t.Run("sends the system prompt first and returns usage", func(t *testing.T) {
		t.Parallel()

		var got map[string]any
		completer, _ := newClients(t, func(path string, body map[string]any) fakeResponse {
			got = body
			return fakeResponse{status: http.StatusOK, body: `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini-2024-07-18",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Open settings.json [1]."}}],
				"usage":{"prompt_tokens":300,"completion_tokens":9,"total_tokens":309}}`}
		})

		completion, err := completer.Complete(context.Background(), idedocs.CompletionRequest{
			System: "Answer from the documentation.",
			Messages: []idedocs.Message{
				{Role: idedocs.RoleUser, Content: "Where are settings?"},
			},
			MaxTokens: 100,
		})

		require.NoError(t, err)
		assert.Equal(t, "Open settings.json [1].", completion.Text)
		assert.Equal(t, 300, completion.InputTokens)
		assert.Equal(t, 9, completion.OutputTokens)
		msgs, ok := got["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "gpt-4o-mini", got["model"])
	})

	t.Run("maps rate limiting with the retry hint", func(t *testing.T) {
		t.Parallel()

		completer, _ := newClients(t, func(string, map[string]any) fakeResponse {
			return fakeResponse{
				status: http.StatusTooManyRequests,
				header: http.Header{"Retry-After": []string{"12"}},
				body:   `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded","param":null}}`,
			}
		})

		_, err := completer.Complete(context.Background(), idedocs.CompletionRequest{
			Messages: []idedocs.Message{{Role: idedocs.RoleUser, Content: "hi"}},
		})

		assert.Equal(t, idedocs.ERATELIMIT, idedocs.ErrorCode(err))
		assert.Equal(t, 12*time.Second, idedocs.RetryAfterHint(err))
	})

	t.Run("maps a bad key to a configuration error", func(t *testing.T) {
		t.Parallel()

		completer, _ := newClients(t, func(string, map[string]any) fakeResponse {
			return fakeResponse{status: http.StatusUnauthorized, body: `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key","param":null}}`}
		})

		_, err := completer.Complete(context.Background(), idedocs.CompletionRequest{
			Messages: []idedocs.Message{{Role: idedocs.RoleUser, Content: "hi"}},
		})

		assert.Equal(t, idedocs.ECONFIG, idedocs.ErrorCode(err))
		assert.False(t, idedocs.IsRetryable(err))
	})
}

func TestEmbedder_Embed(t *testing.T) {
	t.Parallel()

	t.Run("places vectors by reported index", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		_, embedder := newClients(t, func(path string, _ map[string]any) fakeResponse {
			gotPath = path
			return fakeResponse{status: http.StatusOK, body: `{"object":"list","model":"text-embedding-3-small",
				"data":[{"object":"embedding","index":1,"embedding":[0.5,0.5]},{"object":"embedding","index":0,"embedding":[1,0]}],
				"usage":{"prompt_tokens":4,"total_tokens":4}}`}
		})

		vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})

		require.NoError(t, err)
		assert.Equal(t, "/embeddings", gotPath)
		assert.Equal(t, [][]float32{{1, 0}, {0.5, 0.5}}, vectors)
	})

	t.Run("maps server errors to unavailable", func(t *testing.T) {
		t.Parallel()

		_, embedder := newClients(t, func(string, map[string]any) fakeResponse {
			return fakeResponse{status: http.StatusBadGateway, body: `{"error":{"message":"bad gateway","type":"server_error","code":null,"param":null}}`}
		})

		_, err := embedder.Embed(context.Background(), []string{"a"})

		assert.Equal(t, idedocs.EUNAVAILABLE, idedocs.ErrorCode(err))
	})
}

func TestBuildMessages(t *testing.T) {
	t.Parallel()

	msgs := openai.BuildMessages(idedocs.CompletionRequest{
		Messages: []idedocs.Message{
			{Role: idedocs.RoleUser, Content: "q"},
			{Role: idedocs.RoleAssistant, Content: "a"},
		},
	})

	require.Len(t, msgs, 2)
	assert.NotNil(t, msgs[0].OfUser)
	assert.NotNil(t, msgs[1].OfAssistant)
}
