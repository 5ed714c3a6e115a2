// Package store is the durable, append-only persistence layer: conversations,
// messages, events, preferences, resets and proposals, all backed by a single
// SQLite database file. Immutability and append-only guarantees are enforced
// by triggers (see schema.go), not by application discipline alone.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a pooled *sql.DB open against the SQLite file.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open initializes the schema idempotently, back-fills orphan messages into a
// default "Legacy" conversation, and returns a ready Store.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; SQLite serializes anyway, avoids SQLITE_BUSY storms.

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
}

// ReadOnlyDSN is used by the sql_query tool to open a strictly read-only
// connection against the same database file.
func ReadOnlyDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", url.PathEscape(path))
}

func (s *Store) Close() error { return s.db.Close() }

// DBPath returns the filesystem path of the underlying database file.
func (s *Store) DBPath() string { return s.dbPath }

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	row := s.db.QueryRowContext(ctx, "SELECT id FROM conversations ORDER BY id LIMIT 1")
	var conversationID int64
	err := row.Scan(&conversationID)
	switch err {
	case sql.ErrNoRows:
		res, err := s.db.ExecContext(ctx, "INSERT INTO conversations (title) VALUES (?)", "Legacy")
		if err != nil {
			return fmt.Errorf("insert legacy conversation: %w", err)
		}
		conversationID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read legacy conversation id: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_messages (conversation_id, message_id)
			SELECT ?, id FROM messages
		`, conversationID); err != nil {
			return fmt.Errorf("backfill legacy conversation: %w", err)
		}
	case nil:
		if _, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_messages (conversation_id, message_id)
			SELECT ?, m.id
			FROM messages m
			LEFT JOIN conversation_messages cm ON cm.message_id = m.id
			WHERE cm.message_id IS NULL
		`, conversationID); err != nil {
			return fmt.Errorf("backfill orphan messages: %w", err)
		}
	default:
		return fmt.Errorf("check existing conversations: %w", err)
	}

	return nil
}
