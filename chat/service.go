package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fwojciec/idedocs"
	"github.com/google/uuid"
)

// DefaultHistoryLimit bounds the prior turns sent with a question.
const DefaultHistoryLimit = 10

var _ idedocs.Asker = (*Service)(nil)

// Service answers questions by retrieving context, generating a response
// and recording the exchange in the conversation history.
type Service struct {
	Tools         idedocs.ToolService
	Retriever     idedocs.Retriever
	Responder     idedocs.Responder
	Conversations idedocs.ConversationService

	Options      idedocs.RetrieveOptions
	HistoryLimit int
	Logger       *slog.Logger
}

// NewService returns a Service with default retrieval options.
func NewService(tools idedocs.ToolService, retriever idedocs.Retriever, responder idedocs.Responder, conversations idedocs.ConversationService) *Service {
	return &Service{
		Tools:         tools,
		Retriever:     retriever,
		Responder:     responder,
		Conversations: conversations,
		Options:       idedocs.RetrieveOptions{TopK: 5, Threshold: 0.7},
		HistoryLimit:  DefaultHistoryLimit,
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Ask answers req.Message about req.ToolID. An empty ConversationID starts
// a new conversation whose ID is returned.
//
// Returns ENOTFOUND if the tool does not exist and ECONFLICT if the
// conversation belongs to another tool.
func (s *Service) Ask(ctx context.Context, req idedocs.AskRequest) (*idedocs.AskResponse, error) {
	if req.ToolID == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "tool ID required")
	}
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, idedocs.Errorf(idedocs.EINVALID, "message required")
	}

	tool, err := s.Tools.FindToolByID(ctx, req.ToolID)
	if err != nil {
		return nil, err
	}

	conversationID := req.ConversationID
	var history []idedocs.Message
	if conversationID == "" {
		conversationID = uuid.NewString()
	} else if s.Conversations != nil {
		history, err = s.Conversations.FindMessages(ctx, conversationID, tool.ID, s.HistoryLimit)
		if err != nil {
			return nil, err
		}
	}

	retrieved, err := s.Retriever.RetrieveAndAssemble(ctx, question, tool.ID, s.Options)
	if err != nil {
		return nil, err
	}
	s.logger().Debug("retrieved context", "tool", tool.ID, "results", len(retrieved.Results), "bytes", len(retrieved.Context))

	user := idedocs.Message{Role: idedocs.RoleUser, Content: question}
	resp, err := s.Responder.GenerateResponse(ctx, idedocs.ChatRequest{
		ToolName: tool.Name,
		Messages: append(history, user),
		Context:  retrieved.Context,
		Sources:  retrieved.Sources(),
	})
	if err != nil {
		return nil, err
	}

	if s.Conversations != nil {
		turn := []idedocs.Message{user, {Role: idedocs.RoleAssistant, Content: resp.Response}}
		if err := s.Conversations.AppendMessages(ctx, conversationID, tool.ID, turn); err != nil {
			return nil, err
		}
	}

	return &idedocs.AskResponse{ChatResponse: *resp, ConversationID: conversationID}, nil
}
