// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/cospa-vn/cospa-tui/internal/model"
)

// ErrClosed is returned when operating on a closed store.
var ErrClosed = errors.New("history: store is closed")

// SavedLocation is a row in the saved_locations mirror.
type SavedLocation struct {
	LocationID string
	Name       string
	Address    string
	Category   string
	Coords     model.Coordinates
	SavedAt    time.Time
}

// SearchHit is a single full-text search result.
type SearchHit struct {
	MessageID      string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Store mirrors backend state into a local SQLite database.
// All methods are safe for concurrent use; database/sql serializes
// access through the single connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordConversation upserts a conversation row.
func (s *Store) RecordConversation(conv model.Conversation) error {
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, title, created_at, updated_at, message_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count`,
		conv.ID, conv.GetTitle(), conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(), conv.MessageCount)
	if err != nil {
		return fmt.Errorf("failed to record conversation: %w", err)
	}
	return nil
}

// RecordMessages mirrors a batch of messages for a conversation.
// Existing rows with the same ID are replaced so re-syncs are idempotent.
func (s *Store) RecordMessages(conversationID string, messages []model.Message) error {
	if s.db == nil {
		return ErrClosed
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Ensure the parent row exists so the FK holds even when the
	// conversation was created server-side.
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO conversations (id, title, created_at, updated_at, message_count)
		VALUES (?, ?, ?, ?, 0)`,
		conversationID, model.DefaultConversationTitle, time.Now().Unix(), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to ensure conversation: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		if msg.ID == model.WelcomeID {
			continue // the greeting is synthesized locally, not history
		}
		if _, err := stmt.Exec(msg.ID, conversationID, string(msg.Role), msg.Content, msg.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("failed to record message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages from the mirror.
func (s *Store) DeleteConversation(conversationID string) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Conversations returns mirrored conversations, most recently updated first.
func (s *Store) Conversations() ([]model.Conversation, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`
		SELECT id, title, created_at, updated_at, message_count
		FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		var created, updated int64
		if err := rows.Scan(&conv.ID, &conv.Title, &created, &updated, &conv.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv.CreatedAt = time.Unix(created, 0)
		conv.UpdatedAt = time.Unix(updated, 0)
		out = append(out, conv)
	}
	return out, rows.Err()
}

// Messages returns mirrored messages for a conversation, oldest first.
func (s *Store) Messages(conversationID string) ([]model.Message, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`
		SELECT id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var msg model.Message
		var role string
		var created int64
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.Timestamp = time.UnixMilli(created)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// RecordSavedLocation mirrors a location the user saved.
func (s *Store) RecordSavedLocation(loc model.LocationResult) error {
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO saved_locations
			(location_id, name, address, category, lat, lng, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.Name, loc.Address, string(loc.Category),
		loc.Coordinates.Lat, loc.Coordinates.Lng, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record saved location: %w", err)
	}
	return nil
}

// SavedLocations returns mirrored saved locations, most recent first.
func (s *Store) SavedLocations() ([]SavedLocation, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.Query(`
		SELECT location_id, name, address, category, lat, lng, saved_at
		FROM saved_locations ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved locations: %w", err)
	}
	defer rows.Close()

	var out []SavedLocation
	for rows.Next() {
		var loc SavedLocation
		var savedAt int64
		if err := rows.Scan(&loc.LocationID, &loc.Name, &loc.Address,
			&loc.Category, &loc.Coords.Lat, &loc.Coords.Lng, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved location: %w", err)
		}
		loc.SavedAt = time.Unix(savedAt, 0)
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Search runs a full-text query over mirrored message content.
func (s *Store) Search(query string, limit int) ([]SearchHit, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT m.id, m.conversation_id, m.role, m.content, m.created_at
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		WHERE messages_fts MATCH ?
		ORDER BY rank LIMIT ?`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		var created int64
		if err := rows.Scan(&hit.MessageID, &hit.ConversationID, &hit.Role, &hit.Content, &created); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hit.CreatedAt = time.UnixMilli(created)
		out = append(out, hit)
	}
	return out, rows.Err()
}

// ftsQuery quotes each term so user input cannot inject FTS syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
