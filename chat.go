package idedocs

import (
	"context"
	"time"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a request to a chat-completion provider.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completion is a provider's answer with token usage.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer calls a chat-completion provider.
type Completer interface {
	// Complete returns the model's reply. Missing credentials are reported
	// as ECONFIG, throttling as ERATELIMIT, transient failures as
	// EUNAVAILABLE.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Confidence is a coarse measure of how well an answer is supported by
// retrieved sources.
type Confidence string

// Confidence buckets.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Source is a citation of a retrieved chunk.
type Source struct {
	Index   int     `json:"index"`
	URL     string  `json:"url"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
}

// ChatRequest is the input of a grounded chat response.
type ChatRequest struct {
	ToolName string
	Messages []Message // conversation so far, ending with the user's question
	Context  string
	Sources  []Source
}

// ChatMetadata describes how a response was produced.
type ChatMetadata struct {
	Model        string     `json:"model"`
	Confidence   Confidence `json:"confidence"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
}

// ChatResponse is a grounded answer.
type ChatResponse struct {
	Response   string       `json:"response"`
	Sources    []Source     `json:"sources"`
	TokensUsed int          `json:"tokens_used"`
	Metadata   ChatMetadata `json:"metadata"`
}

// Responder produces answers grounded in supplied context.
type Responder interface {
	GenerateResponse(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// AskRequest is a user question about a tool.
type AskRequest struct {
	ToolID         string `json:"tool_id"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AskResponse is the answer to an AskRequest.
type AskResponse struct {
	ChatResponse
	ConversationID string `json:"conversation_id"`
}

// Asker answers questions about a tool's documentation.
type Asker interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
}

// ConversationMessage is a stored conversation turn.
type ConversationMessage struct {
	ConversationID string    `json:"conversationId"`
	ToolID         string    `json:"toolId"`
	Message        Message   `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationService persists conversation history.
type ConversationService interface {
	// AppendMessages stores messages at the end of a conversation,
	// creating it if needed. Returns ECONFLICT if the conversation belongs
	// to a different tool.
	AppendMessages(ctx context.Context, conversationID, toolID string, msgs []Message) error

	// FindMessages returns the most recent limit messages of a conversation
	// in chronological order. A limit of zero returns all messages. An
	// unknown conversation has no messages; one owned by a tool other than
	// toolID is ECONFLICT.
	FindMessages(ctx context.Context, conversationID, toolID string, limit int) ([]Message, error)
}
