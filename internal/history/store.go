// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/flowchat-tui/internal/conversation"
	"github.com/jeranaias/flowchat-tui/internal/util"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	role            TEXT NOT NULL,
	text            TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, position);
`

// =============================================================================
// STORE
// =============================================================================

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("history: conversation not found")

// Meta contains metadata for listing conversations.
type Meta struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Store persists conversations in a SQLite database. Safe for concurrent
// use; SQLite serializes writers, so the pool is capped at one connection.
type Store struct {
	db *sql.DB

	// MaxConversations limits stored conversations (0 = unlimited). The
	// oldest conversations are pruned on save.
	MaxConversations int
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, MaxConversations: 100}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the full message list for conversation id, replacing any
// previous snapshot. The title is derived from the first user message and
// refreshed on later saves; the placeholder never overwrites a real title.
func (s *Store) Save(id string, msgs []*conversation.Message) error {
	if id == "" {
		return errors.New("history: conversation id is required")
	}

	now := time.Now().UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			title = CASE WHEN excluded.title = ?
				THEN conversations.title
				ELSE excluded.title END`,
		id, deriveTitle(msgs), now, now, untitled)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (id, conversation_id, position, role, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, msg := range msgs {
		_, err := stmt.Exec(msg.ID, id, i, string(msg.Role), msg.Text, msg.CreatedAt.UnixMilli())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return s.prune()
}

// untitled is the placeholder title for conversations saved before any user
// message exists.
const untitled = "Untitled conversation"

// deriveTitle builds a short conversation title from the first user message.
func deriveTitle(msgs []*conversation.Message) string {
	for _, msg := range msgs {
		if msg.Role == conversation.RoleUser {
			return util.Truncate(msg.Text, 60)
		}
	}
	return untitled
}

// prune deletes the oldest conversations beyond MaxConversations.
func (s *Store) prune() error {
	if s.MaxConversations <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations
			ORDER BY updated_at DESC
			LIMIT -1 OFFSET ?
		)`, s.MaxConversations)
	return err
}

// =============================================================================
// READ
// =============================================================================

// List returns conversation metadata, most recently updated first.
func (s *Store) List() ([]Meta, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.title, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var m Meta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Title, &created, &updated, &m.MessageCount); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(created)
		m.UpdatedAt = time.UnixMilli(updated)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Load returns the messages of conversation id in order.
func (s *Store) Load(id string) ([]*conversation.Message, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.Query(`
		SELECT id, role, text, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*conversation.Message
	for rows.Next() {
		var msg conversation.Message
		var role string
		var created int64
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &created); err != nil {
			return nil, err
		}
		msg.Role = conversation.Role(role)
		msg.CreatedAt = time.UnixMilli(created)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// Delete removes conversation id and its messages.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
