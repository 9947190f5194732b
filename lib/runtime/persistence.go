package runtime

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/emberscript/ember/pkg/bytecode"
)

// ErrSessionNotFound indicates the requested session has no persisted state
var ErrSessionNotFound = errors.New("session not found")

// ContextStore persists session variables to SQLite so a session survives
// process restarts. Values are stored CBOR-encoded, one row per variable.
type ContextStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewContextStore opens (or creates) the store at the given path.
func NewContextStore(dbPath string) (*ContextStore, error) {
	s := &ContextStore{dbPath: dbPath}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	// Busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS session_vars (
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (session_id, name)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return s, nil
}

// NewContextStoreDefault opens the store at $EMBER_DB, or
// ~/.ember/sessions.db when unset.
func NewContextStoreDefault() (*ContextStore, error) {
	dbPath := os.Getenv("EMBER_DB")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home dir: %w", err)
		}
		dbPath = filepath.Join(home, ".ember", "sessions.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database dir: %w", err)
	}
	return NewContextStore(dbPath)
}

// Close closes the database connection.
func (s *ContextStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveContext replaces the session's persisted variables with a snapshot
// of the context. The replacement is transactional: a failed save leaves
// the previous state intact.
func (s *ContextStore) SaveContext(sessionID string, ctx *bytecode.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM session_vars WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clearing session %s: %w", sessionID, err)
	}

	for name, value := range ctx.Snapshot() {
		blob, err := bytecode.MarshalValue(value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO session_vars (session_id, name, value) VALUES (?, ?, ?)",
			sessionID, name, blob,
		); err != nil {
			return fmt.Errorf("saving %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// LoadContext restores a session's persisted variables into the context,
// replacing whatever it held. Returns ErrSessionNotFound when nothing was
// persisted for the session.
func (s *ContextStore) LoadContext(sessionID string, ctx *bytecode.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT name, value FROM session_vars WHERE session_id = ?", sessionID,
	)
	if err != nil {
		return fmt.Errorf("querying session %s: %w", sessionID, err)
	}
	defer rows.Close()

	vars := make(map[string]bytecode.Value)
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return fmt.Errorf("scanning session %s: %w", sessionID, err)
		}
		value, err := bytecode.UnmarshalValue(blob)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", name, err)
		}
		vars[name] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	if len(vars) == 0 {
		return ErrSessionNotFound
	}

	ctx.Restore(vars)
	return nil
}

// DeleteSession removes a session's persisted variables.
func (s *ContextStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM session_vars WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// Sessions lists the session IDs with persisted state.
func (s *ContextStore) Sessions() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT DISTINCT session_id FROM session_vars ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
