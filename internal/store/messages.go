package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertMessage inserts a message and links it to the conversation in a
// single transaction, so a reader can never observe one without the other.
func (s *Store) InsertMessage(ctx context.Context, conversationID int64, role Role, content string, correctsMessageID *int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (content, role, corrects_message_id) VALUES (?, ?, ?)",
		content, string(role), correctsMessageID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	messageID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read message id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO conversation_messages (conversation_id, message_id) VALUES (?, ?)",
		conversationID, messageID,
	); err != nil {
		return 0, fmt.Errorf("link message to conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit message insert: %w", err)
	}
	return messageID, nil
}

// GetMessage fetches a single message by id.
func (s *Store) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, content, role, timestamp, corrects_message_id FROM messages WHERE id = ?", id)
	var m Message
	var role string
	if err := row.Scan(&m.ID, &m.Content, &role, &m.Timestamp, &m.CorrectsMessageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	m.Role = Role(role)
	return &m, nil
}

// ListMessagesForConversation returns every message belonging to a
// conversation, ordered ascending by id (the canonical ordering, never
// timestamp).
func (s *Store) ListMessagesForConversation(ctx context.Context, conversationID int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.content, m.role, m.timestamp, m.corrects_message_id
		FROM messages m
		JOIN conversation_messages cm ON cm.message_id = m.id
		WHERE cm.conversation_id = ?
		ORDER BY m.id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.Content, &role, &m.Timestamp, &m.CorrectsMessageID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LastMessageRoleForConversation returns the role of the highest-id message
// in the conversation, or nil if the conversation has no messages yet.
func (s *Store) LastMessageRoleForConversation(ctx context.Context, conversationID int64) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT m.role
		FROM messages m
		JOIN conversation_messages cm ON cm.message_id = m.id
		WHERE cm.conversation_id = ?
		ORDER BY m.id DESC
		LIMIT 1
	`, conversationID)
	var role string
	err := row.Scan(&role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last message role: %w", err)
	}
	r := Role(role)
	return &r, nil
}
