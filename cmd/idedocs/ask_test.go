package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/idedocs"
	main "github.com/fwojciec/idedocs/cmd/idedocs"
	"github.com/fwojciec/idedocs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints the answer and sources", func(t *testing.T) {
		t.Parallel()

		deps, stdout, stderr := newDeps(toolsNamed(&idedocs.Tool{ID: "t1", Name: "cursor"}))
		var got idedocs.AskRequest
		deps.Asker = &mock.Asker{
			AskFn: func(_ context.Context, req idedocs.AskRequest) (*idedocs.AskResponse, error) {
				got = req
				return &idedocs.AskResponse{
					ChatResponse: idedocs.ChatResponse{
						Response: "Press Cmd+L [1].",
						Sources: []idedocs.Source{
							{Index: 1, URL: "https://docs.cursor.com/chat", Section: "Opening chat", Score: 0.91},
						},
						Metadata: idedocs.ChatMetadata{Confidence: idedocs.ConfidenceHigh},
					},
					ConversationID: "conv-9",
				}, nil
			},
		}

		cmd := &main.AskCmd{Name: "cursor", Question: "How do I open chat?", Conversation: "conv-9", Sources: true}
		require.NoError(t, cmd.Run(deps))

		assert.Equal(t, idedocs.AskRequest{ToolID: "t1", Message: "How do I open chat?", ConversationID: "conv-9"}, got)
		assert.Contains(t, stdout.String(), "Press Cmd+L [1].")
		assert.Contains(t, stdout.String(), "[1] https://docs.cursor.com/chat (Opening chat) 0.91")
		assert.Contains(t, stderr.String(), "conversation conv-9")
	})

	t.Run("suggests when to retry a rate limited request", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps(toolsNamed(&idedocs.Tool{ID: "t1", Name: "cursor"}))
		deps.Asker = &mock.Asker{
			AskFn: func(context.Context, idedocs.AskRequest) (*idedocs.AskResponse, error) {
				return nil, idedocs.RateLimited(20*time.Second, "rate limited")
			},
		}

		err := (&main.AskCmd{Name: "cursor", Question: "hi"}).Run(deps)

		assert.Equal(t, idedocs.ERATELIMIT, idedocs.ErrorCode(err))
		assert.Contains(t, stderr.String(), "Try again in 20s")
	})

	t.Run("reports unknown tools", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := newDeps(toolsNamed(&idedocs.Tool{ID: "t1", Name: "cursor"}))

		err := (&main.AskCmd{Name: "zed", Question: "hi"}).Run(deps)

		assert.Equal(t, idedocs.ENOTFOUND, idedocs.ErrorCode(err))
	})
}
