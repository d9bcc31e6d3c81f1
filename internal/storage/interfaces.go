package storage

import (
	"context"
	"time"
)

// SessionRepository handles sessions and their message history.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	// AppendMessages adds messages to the end of the session history.
	AppendMessages(ctx context.Context, sessionID string, messages ...Message) error
	// GetHistory returns up to limit newest messages in chronological order.
	// A non-positive limit returns the whole history.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]Message, error)
	DeleteSession(ctx context.Context, id string) error
}

// GenerationLogRepository handles generation agent logs.
type GenerationLogRepository interface {
	AddGenerationLog(ctx context.Context, log GenerationLog) error
	GetGenerationLogs(ctx context.Context, filter GenerationLogFilter, limit int) ([]GenerationLog, error)
}

// MaintenanceRepository handles database size reporting and cleanup.
type MaintenanceRepository interface {
	GetDBSize() (int64, error)
	CountSessions(ctx context.Context) (int, error)
	CleanupGenerationLogs(ctx context.Context, keep int) (int64, error)
	CleanupSessions(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Store is the full SQLite-backed repository set.
type Store interface {
	SessionRepository
	GenerationLogRepository
	MaintenanceRepository
}

var (
	_ Store             = (*SQLiteStore)(nil)
	_ SessionRepository = (*RedisSessionStore)(nil)
	_ SessionRepository = (*MemorySessionStore)(nil)
)
