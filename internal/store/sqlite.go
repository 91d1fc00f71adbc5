// Package store persists the installation state to SQLite: the usage
// counter, conversation history and diagnostic logs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/PageSage/pagesage/internal/diag"
	"github.com/PageSage/pagesage/pkg/types"
)

// SQLiteStore persists installation state to a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store at the given path
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent write performance
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	schema := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS usage_counter (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			count INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, id)`,
		`CREATE TABLE IF NOT EXISTS error_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			provider TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS decision_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			query_id TEXT NOT NULL,
			query TEXT NOT NULL,
			model TEXT NOT NULL,
			reasoning TEXT NOT NULL,
			used_page INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InstallationID returns the stable per-installation identifier,
// generating and persisting one on first use
func (s *SQLiteStore) InstallationID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'installation_id'`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to load installation id: %w", err)
	}

	id = uuid.New().String()
	if _, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES ('installation_id', ?)`, id); err != nil {
		return "", fmt.Errorf("failed to save installation id: %w", err)
	}
	return id, nil
}

// === Usage Counter ===

// UsageCount returns the persisted query counter, 0 if never written
func (s *SQLiteStore) UsageCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT count FROM usage_counter WHERE id = 1`).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load usage count: %w", err)
	}
	return count, nil
}

// SetUsageCount writes the query counter (upsert)
func (s *SQLiteStore) SetUsageCount(count int) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO usage_counter (id, count, updated_at)
		VALUES (1, ?, ?)
	`, count, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save usage count: %w", err)
	}
	return nil
}

// === Conversation History ===

// AppendConversation persists one completed exchange
func (s *SQLiteStore) AppendConversation(e types.ConversationEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (session_id, ts, prompt, response, model)
		VALUES (?, ?, ?, ?, ?)
	`, e.SessionID, e.Timestamp.Unix(), e.Prompt, e.Response, e.Model)
	if err != nil {
		return fmt.Errorf("failed to save conversation entry: %w", err)
	}
	return nil
}

// LoadConversation retrieves the most recent limit entries for a session,
// oldest first
func (s *SQLiteStore) LoadConversation(sessionID string, limit int) ([]types.ConversationEntry, error) {
	rows, err := s.db.Query(`
		SELECT session_id, ts, prompt, response, model
		FROM (
			SELECT id, session_id, ts, prompt, response, model
			FROM conversations WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	defer rows.Close()

	var entries []types.ConversationEntry
	for rows.Next() {
		var e types.ConversationEntry
		var ts int64
		if err := rows.Scan(&e.SessionID, &ts, &e.Prompt, &e.Response, &e.Model); err != nil {
			return nil, fmt.Errorf("failed to scan conversation entry: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TrimConversation deletes all but the newest keep entries for a session
func (s *SQLiteStore) TrimConversation(sessionID string, keep int) error {
	_, err := s.db.Exec(`
		DELETE FROM conversations WHERE session_id = ? AND id NOT IN (
			SELECT id FROM conversations WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		)
	`, sessionID, sessionID, keep)
	if err != nil {
		return fmt.Errorf("failed to trim conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes all entries for a session
func (s *SQLiteStore) DeleteConversation(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// ListSessions returns all session ids, most recently active first
func (s *SQLiteStore) ListSessions() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT session_id FROM conversations
		GROUP BY session_id ORDER BY MAX(id) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// === Diagnostic Logs ===

// AppendError persists a provider failure record, keeping the table bounded
func (s *SQLiteStore) AppendError(rec diag.ErrorRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO error_log (ts, provider, attempt, kind, message, url)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Timestamp.Unix(), rec.Provider, rec.Attempt, string(rec.Kind), rec.Message, rec.URL)
	if err != nil {
		return fmt.Errorf("failed to save error record: %w", err)
	}
	_, err = s.db.Exec(`
		DELETE FROM error_log WHERE id NOT IN (
			SELECT id FROM error_log ORDER BY id DESC LIMIT ?
		)
	`, diag.MaxErrors)
	return err
}

// AppendDecision persists a routing decision record, keeping the table bounded
func (s *SQLiteStore) AppendDecision(rec diag.DecisionRecord) error {
	usedPage := 0
	if rec.UsedPage {
		usedPage = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO decision_log (ts, query_id, query, model, reasoning, used_page)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Timestamp.Unix(), rec.QueryID, rec.Query, string(rec.Model), rec.Reasoning, usedPage)
	if err != nil {
		return fmt.Errorf("failed to save decision record: %w", err)
	}
	_, err = s.db.Exec(`
		DELETE FROM decision_log WHERE id NOT IN (
			SELECT id FROM decision_log ORDER BY id DESC LIMIT ?
		)
	`, diag.MaxDecisions)
	return err
}

// LoadErrors retrieves the newest limit provider failure records, oldest first
func (s *SQLiteStore) LoadErrors(limit int) ([]diag.ErrorRecord, error) {
	rows, err := s.db.Query(`
		SELECT ts, provider, attempt, kind, message, url
		FROM (
			SELECT id, ts, provider, attempt, kind, message, url
			FROM error_log ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load error log: %w", err)
	}
	defer rows.Close()

	var recs []diag.ErrorRecord
	for rows.Next() {
		var rec diag.ErrorRecord
		var ts int64
		var kind string
		if err := rows.Scan(&ts, &rec.Provider, &rec.Attempt, &kind, &rec.Message, &rec.URL); err != nil {
			return nil, fmt.Errorf("failed to scan error record: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		rec.Kind = types.ErrorKind(kind)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LoadDecisions retrieves the newest limit routing decision records, oldest first
func (s *SQLiteStore) LoadDecisions(limit int) ([]diag.DecisionRecord, error) {
	rows, err := s.db.Query(`
		SELECT ts, query_id, query, model, reasoning, used_page
		FROM (
			SELECT id, ts, query_id, query, model, reasoning, used_page
			FROM decision_log ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load decision log: %w", err)
	}
	defer rows.Close()

	var recs []diag.DecisionRecord
	for rows.Next() {
		var rec diag.DecisionRecord
		var ts int64
		var model string
		var usedPage int
		if err := rows.Scan(&ts, &rec.QueryID, &rec.Query, &model, &rec.Reasoning, &usedPage); err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		rec.Model = types.Model(model)
		rec.UsedPage = usedPage == 1
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
