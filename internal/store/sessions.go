// Package store persists conversation sessions in SQLite. The store is
// strictly optional: every pipeline call site logs and continues when a
// store operation fails, so a broken database never costs a turn.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trailscout/internal/logging"
)

// Turn roles recorded in session_turns.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

const sessionSchema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		original_request TEXT
	);
	CREATE TABLE IF NOT EXISTS session_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		intent_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, turn_number, role)
	);
	CREATE INDEX IF NOT EXISTS idx_session_turns ON session_turns(session_id);
	`

// Turn is one recorded line of a session transcript.
type Turn struct {
	TurnNumber int
	Role       string
	Content    string
	IntentJSON string
	CreatedAt  time.Time
}

// SessionSummary describes one session for listings.
type SessionSummary struct {
	ID              string
	CreatedAt       time.Time
	OriginalRequest string
	Turns           int
}

// SessionStore records conversation transcripts in SQLite.
type SessionStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewSessionStore opens (creating if needed) the session database at
// the given path.
func NewSessionStore(path string) (*SessionStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSessionStore")
	defer timer.Stop()

	logging.Store("Initializing session store at path: %s", path)

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(sessionSchema); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.StoreDebug("Session store schema ready")
	return &SessionStore{db: db, dbPath: path}, nil
}

// BeginSession registers a session. Re-registering an existing session
// is a no-op, so reconnecting to a session ID is safe.
func (s *SessionStore) BeginSession(sessionID, originalRequest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO sessions (id, original_request) VALUES (?, ?)",
		sessionID, originalRequest,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to begin session %s: %v", sessionID, err)
		return err
	}

	logging.StoreDebug("Session registered: %s", sessionID)
	return nil
}

// RecordTurn stores one transcript line. Duplicate (session, turn, role)
// triples are silently skipped so retried turns stay idempotent.
func (s *SessionStore) RecordTurn(sessionID string, turnNumber int, role, content, intentJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Storing session turn: session=%s turn=%d role=%s content_len=%d",
		sessionID, turnNumber, role, len(content))

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_turns (session_id, turn_number, role, content, intent_json)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, turnNumber, role, content, intentJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store turn: session=%s turn=%d role=%s: %v",
			sessionID, turnNumber, role, err)
		return err
	}
	return nil
}

// SessionHistory returns the transcript in reading order. Within one
// turn the user line sorts before the agent line (role DESC).
func (s *SessionStore) SessionHistory(sessionID string, limit int) ([]Turn, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SessionHistory")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT turn_number, role, content, intent_json, created_at
		 FROM session_turns
		 WHERE session_id = ?
		 ORDER BY turn_number ASC, role DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to query history for %s: %v", sessionID, err)
		return nil, err
	}
	defer rows.Close()

	var history []Turn
	for rows.Next() {
		var t Turn
		var intentJSON sql.NullString
		if err := rows.Scan(&t.TurnNumber, &t.Role, &t.Content, &intentJSON, &t.CreatedAt); err != nil {
			continue
		}
		t.IntentJSON = intentJSON.String
		history = append(history, t)
	}

	logging.StoreDebug("Retrieved %d transcript lines for session=%s", len(history), sessionID)
	return history, rows.Err()
}

// RecentSessions lists sessions newest first with their turn counts.
func (s *SessionStore) RecentSessions(limit int) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT s.id, s.created_at, COALESCE(s.original_request, ''), COUNT(t.id)
		 FROM sessions s
		 LEFT JOIN session_turns t ON t.session_id = s.id
		 GROUP BY s.id
		 ORDER BY s.created_at DESC, s.id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to list sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.CreatedAt, &sum.OriginalRequest, &sum.Turns); err != nil {
			continue
		}
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

// Close releases the database handle.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Closing session store: %s", s.dbPath)
	return s.db.Close()
}
