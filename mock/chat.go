package mock

import (
	"context"

	"github.com/fwojciec/idedocs"
)

var (
	_ idedocs.Completer           = (*Completer)(nil)
	_ idedocs.Responder           = (*Responder)(nil)
	_ idedocs.Retriever           = (*Retriever)(nil)
	_ idedocs.Asker               = (*Asker)(nil)
	_ idedocs.ConversationService = (*ConversationService)(nil)
)

// Completer is a mock implementation of idedocs.Completer.
type Completer struct {
	CompleteFn func(ctx context.Context, req idedocs.CompletionRequest) (*idedocs.Completion, error)
}

func (c *Completer) Complete(ctx context.Context, req idedocs.CompletionRequest) (*idedocs.Completion, error) {
	return c.CompleteFn(ctx, req)
}

// Responder is a mock implementation of idedocs.Responder.
type Responder struct {
	GenerateResponseFn func(ctx context.Context, req idedocs.ChatRequest) (*idedocs.ChatResponse, error)
}

func (r *Responder) GenerateResponse(ctx context.Context, req idedocs.ChatRequest) (*idedocs.ChatResponse, error) {
	return r.GenerateResponseFn(ctx, req)
}

// Retriever is a mock implementation of idedocs.Retriever.
type Retriever struct {
	RetrieveAndAssembleFn func(ctx context.Context, query, toolID string, opts idedocs.RetrieveOptions) (*idedocs.RetrievalResult, error)
}

func (r *Retriever) RetrieveAndAssemble(ctx context.Context, query, toolID string, opts idedocs.RetrieveOptions) (*idedocs.RetrievalResult, error) {
	return r.RetrieveAndAssembleFn(ctx, query, toolID, opts)
}

// Asker is a mock implementation of idedocs.Asker.
type Asker struct {
	AskFn func(ctx context.Context, req idedocs.AskRequest) (*idedocs.AskResponse, error)
}

func (a *Asker) Ask(ctx context.Context, req idedocs.AskRequest) (*idedocs.AskResponse, error) {
	return a.AskFn(ctx, req)
}

// ConversationService is a mock implementation of idedocs.ConversationService.
type ConversationService struct {
	AppendMessagesFn func(ctx context.Context, conversationID, toolID string, msgs []idedocs.Message) error
	FindMessagesFn   func(ctx context.Context, conversationID, toolID string, limit int) ([]idedocs.Message, error)
}

func (s *ConversationService) AppendMessages(ctx context.Context, conversationID, toolID string, msgs []idedocs.Message) error {
	return s.AppendMessagesFn(ctx, conversationID, toolID, msgs)
}

func (s *ConversationService) FindMessages(ctx context.Context, conversationID, toolID string, limit int) ([]idedocs.Message, error) {
	return s.FindMessagesFn(ctx, conversationID, toolID, limit)
}
