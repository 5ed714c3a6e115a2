package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateConversation inserts a new conversation row and returns its id.
func (s *Store) CreateConversation(ctx context.Context, title *string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO conversations (title) VALUES (?)", title)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	return res.LastInsertId()
}

// GetLatestConversationID returns the highest conversation id, creating a
// "Legacy" conversation first if none exists yet.
func (s *Store) GetLatestConversationID(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id FROM conversations ORDER BY id DESC LIMIT 1")
	var id int64
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		title := "Legacy"
		return s.CreateConversation(ctx, &title)
	}
	if err != nil {
		return 0, fmt.Errorf("query latest conversation: %w", err)
	}
	return id, nil
}

// ConversationExists reports whether a conversation with the given id exists.
func (s *Store) ConversationExists(ctx context.Context, id int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT 1 FROM conversations WHERE id = ?", id)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check conversation exists: %w", err)
	}
	return true, nil
}

// ListConversations returns every conversation with its message count, newest first.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, COUNT(cm.message_id) AS message_count
		FROM conversations c
		LEFT JOIN conversation_messages cm ON cm.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.MessageCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversationIDForMessage looks up which conversation a message currently
// belongs to, using the most recent membership row if more than one exists.
func (s *Store) GetConversationIDForMessage(ctx context.Context, messageID int64) (*int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id
		FROM conversation_messages
		WHERE message_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, messageID)
	var id int64
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation for message: %w", err)
	}
	return &id, nil
}
