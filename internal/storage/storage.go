// Package storage keeps dialogue sessions, their message history and the
// generation log. SQLite is the durable store; Redis and an in-process map
// are alternative session backends.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is one visitor conversation with one persona.
type Session struct {
	ID        string
	Persona   string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one stored conversation message.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// GenerationLog stores one call of a generation agent with all its attempts.
type GenerationLog struct {
	ID             int64
	SessionID      string
	AgentType      string
	InputPrompt    string
	InputMessages  string // JSON
	OutputResponse string
	OutputParsed   string // JSON
	Model          string
	Temperature    float64
	AttemptCount   int
	Attempts       string // JSON
	DurationMs     int
	Metadata       string // JSON
	Success        bool
	ErrorMessage   string
	CreatedAt      time.Time
}

// GenerationLogFilter narrows generation log queries. Zero fields match all.
type GenerationLogFilter struct {
	SessionID string
	AgentType string
	Success   *bool
}

const timeLayout = "2006-01-02 15:04:05.999"

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string // Original path without query params, for file size check
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// modernc.org/sqlite serializes writers poorly; one connection avoids
	// "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// the _journal_mode query param is ignored by modernc.org/sqlite
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		logger.Warn("failed to enable foreign keys", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger.With("component", "storage"), dbPath: originalPath}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		persona TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
	CREATE TABLE IF NOT EXISTS generation_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL DEFAULT '',
		agent_type TEXT NOT NULL,
		input_prompt TEXT,
		input_messages TEXT,
		output_response TEXT,
		output_parsed TEXT,
		model TEXT,
		temperature REAL,
		attempt_count INTEGER DEFAULT 0,
		attempts TEXT,
		duration_ms INTEGER DEFAULT 0,
		metadata TEXT,
		success BOOLEAN DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_generation_logs_session ON generation_logs(session_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_generation_logs_agent ON generation_logs(agent_type, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Checkpoint forces a WAL checkpoint to flush all pending writes to the main
// database file.
func (s *SQLiteStore) Checkpoint() error {
	var busy, log, checkpointed int
	err := s.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &log, &checkpointed)
	if err != nil {
		return fmt.Errorf("checkpoint query failed: %w", err)
	}

	s.logger.Debug("WAL checkpoint result",
		"busy", busy,
		"log_frames", log,
		"checkpointed_frames", checkpointed,
	)

	if busy != 0 {
		return fmt.Errorf("checkpoint blocked by reader (busy=%d)", busy)
	}
	if log > 0 && checkpointed < log {
		return fmt.Errorf("incomplete checkpoint: %d/%d frames", checkpointed, log)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.Checkpoint(); err != nil {
		s.logger.Warn("failed to checkpoint WAL before close", "error", err)
	}
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
