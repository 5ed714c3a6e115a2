package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// InsertEvent appends an event row and returns its id. Events are never
// updated or deleted afterward (enforced by triggers, see schema.go).
func (s *Store) InsertEvent(ctx context.Context, eventType string, payload any, conversationID, causalityMessageID *int64) (int64, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (type, payload_json, conversation_id, causality_message_id)
		VALUES (?, ?, ?, ?)
	`, eventType, string(payloadJSON), conversationID, causalityMessageID)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// ListEventsFilter narrows ListEvents; zero values mean "no filter".
type ListEventsFilter struct {
	EventType      string
	ConversationID *int64
	Limit          int
}

// ListEvents returns the most recent events matching the filter, newest first.
func (s *Store) ListEvents(ctx context.Context, filter ListEventsFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}

	query := `
		SELECT id, type, payload_json, conversation_id, causality_message_id, created_at
		FROM events
	`
	var args []any
	var clauses []string
	if filter.EventType != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.EventType)
	}
	if filter.ConversationID != nil {
		clauses = append(clauses, "conversation_id = ?")
		args = append(args, *filter.ConversationID)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Type, &e.PayloadJSON, &e.ConversationID, &e.CausalityMessageID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
