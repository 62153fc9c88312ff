// Package history implements the durable per-user conversation transcript
// store backed by SQLite. Each user gets an identity row plus a dedicated
// transcript table partitioned by sanitized handle + user id, so untrusted
// handles can never collide with or escape into another user's transcript.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Sender identifies who produced a conversation turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Turn is a single immutable transcript entry.
type Turn struct {
	UserID    int64
	Sender    Sender
	Text      string
	Timestamp time.Time
}

// Store persists per-user conversation transcripts. Writes are synchronous:
// when Record returns, the turn is durable.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the history database at path and ensures the
// identity table exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			handle  TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating users table: %w", err)
	}

	return &Store{db: db, logger: logger.With("component", "history")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one turn to the user's transcript. The identity row is
// created implicitly and idempotently on first write. Failures are logged
// here; callers may ignore the returned error and continue the conversation
// without history for that turn.
func (s *Store) Record(userID int64, handle string, sender Sender, text string) error {
	if err := s.ensureUser(userID, handle); err != nil {
		s.logger.Error("failed to register user", "user", userID, "err", err)
		return err
	}

	table := transcriptTable(userID, s.canonicalHandle(userID, handle))
	if err := s.ensureTranscript(table); err != nil {
		s.logger.Error("failed to create transcript table", "user", userID, "err", err)
		return err
	}

	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (sender, message, created_at) VALUES (?, ?, ?)`, table),
		string(sender), text, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		s.logger.Error("failed to record turn", "user", userID, "sender", sender, "err", err)
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Load returns every turn ever recorded for the user, oldest first. The
// transcript follows the user id, not the current handle, so a renamed
// user keeps their history.
func (s *Store) Load(userID int64, handle string) ([]Turn, error) {
	table := transcriptTable(userID, s.canonicalHandle(userID, handle))
	if !s.transcriptExists(table) {
		return nil, nil
	}

	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT sender, message, created_at FROM %s ORDER BY id ASC`, table))
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t         Turn
			sender    string
			createdAt string
		)
		if err := rows.Scan(&sender, &t.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.UserID = userID
		t.Sender = Sender(sender)
		t.Timestamp, _ = time.Parse(time.RFC3339, createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Clear drops the user's transcript. The identity row is kept.
func (s *Store) Clear(userID int64, handle string) error {
	table := transcriptTable(userID, s.canonicalHandle(userID, handle))
	if !s.transcriptExists(table) {
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		s.logger.Error("failed to clear transcript", "user", userID, "err", err)
		return fmt.Errorf("clear transcript: %w", err)
	}
	return nil
}

// ensureUser registers the identity row; writing twice for the same id
// is a no-op on the identity table, not an error.
func (s *Store) ensureUser(userID int64, handle string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO users (user_id, handle) VALUES (?, ?)`,
		userID, handle,
	)
	return err
}

// canonicalHandle returns the handle stored in the identity table for the
// user, falling back to the given handle for a user with no identity row
// yet. Table names derive from it, so they stay stable across renames.
func (s *Store) canonicalHandle(userID int64, handle string) string {
	var stored string
	err := s.db.QueryRow(`SELECT handle FROM users WHERE user_id = ?`, userID).Scan(&stored)
	if err != nil {
		return handle
	}
	return stored
}

func (s *Store) ensureTranscript(table string) error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			sender     TEXT NOT NULL,
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`, table))
	return err
}

func (s *Store) transcriptExists(table string) bool {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
	).Scan(&name)
	return err == nil
}

// transcriptTable derives the per-user table name. The handle is untrusted
// input: everything outside [a-z0-9_] is stripped, and the stable numeric id
// guarantees uniqueness even when two handles sanitize identically.
func transcriptTable(userID int64, handle string) string {
	return fmt.Sprintf("history_%s_%d", SanitizeHandle(handle), userID)
}

// SanitizeHandle lowercases the handle and strips every character outside
// [a-z0-9_]. Empty results become "user".
func SanitizeHandle(handle string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(handle) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
