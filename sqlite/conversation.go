package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/fwojciec/idedocs"
)

// Compile-time interface verification.
var _ idedocs.ConversationService = (*ConversationService)(nil)

// ConversationService implements idedocs.ConversationService using SQLite.
type ConversationService struct {
	db *DB
}

// NewConversationService creates a new ConversationService.
func NewConversationService(db *DB) *ConversationService {
	return &ConversationService{db: db}
}

// AppendMessages stores msgs at the end of a conversation.
func (s *ConversationService) AppendMessages(ctx context.Context, conversationID, toolID string, msgs []idedocs.Message) error {
	if conversationID == "" {
		return idedocs.Errorf(idedocs.EINVALID, "conversation ID required")
	}
	if toolID == "" {
		return idedocs.Errorf(idedocs.EINVALID, "conversation tool ID required")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())

	var owner string
	err = tx.QueryRowContext(ctx, "SELECT tool_id FROM conversations WHERE id = ?", conversationID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO conversations (id, tool_id, created_at) VALUES (?, ?, ?)",
			conversationID, toolID, now); err != nil {
			return err
		}
	case err != nil:
		return err
	case owner != toolID:
		return idedocs.Errorf(idedocs.ECONFLICT, "conversation %s belongs to another tool", conversationID)
	}

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)
		`, conversationID, string(m.Role), m.Content, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FindMessages returns the most recent limit messages in chronological
// order. An unknown conversation has no messages. Returns ECONFLICT if the
// conversation belongs to a tool other than toolID.
func (s *ConversationService) FindMessages(ctx context.Context, conversationID, toolID string, limit int) ([]idedocs.Message, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, "SELECT tool_id FROM conversations WHERE id = ?", conversationID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	case owner != toolID:
		return nil, idedocs.Errorf(idedocs.ECONFLICT, "conversation %s belongs to another tool", conversationID)
	}

	query := "SELECT role, content FROM conversation_messages WHERE conversation_id = ? ORDER BY seq DESC"
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []idedocs.Message
	for rows.Next() {
		var m idedocs.Message
		var role string
		if err := rows.Scan(&role, &m.Content); err != nil {
			return nil, err
		}
		m.Role = idedocs.Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(msgs)
	return msgs, nil
}
