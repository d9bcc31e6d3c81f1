package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession stores a new session. An empty ID is replaced by a UUID.
func (s *SQLiteStore) CreateSession(ctx context.Context, session Session) (Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt

	query := "INSERT INTO sessions (id, persona, language, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.Persona, session.Language,
		formatTime(session.CreatedAt), formatTime(session.UpdatedAt),
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	recordSessionCreated("sqlite")
	return session, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (Session, error) {
	query := "SELECT id, persona, language, created_at, updated_at FROM sessions WHERE id = ?"
	var session Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.Persona, &session.Language, &session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// AppendMessages inserts messages in one transaction and bumps the session
// update time.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, messages ...Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	now := time.Now()
	for _, m := range messages {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
			sessionID, m.Role, m.Content, formatTime(createdAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE id = ?", formatTime(now), sessionID); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, session_id, role, content, created_at FROM messages
			 WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, session_id, role, content, created_at FROM messages
			 WHERE session_id = ? ORDER BY id DESC`, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse needed because we fetched DESC
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
