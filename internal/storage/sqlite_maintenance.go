package storage

import (
	"context"
	"fmt"
	"os"
	"time"
)

// TableSize represents the size of a database table.
type TableSize struct {
	Name  string
	Bytes int64
}

// GetDBSize returns the size of the database file in bytes.
func (s *SQLiteStore) GetDBSize() (int64, error) {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// GetTableSizes returns the size of each table in bytes using SQLite's dbstat virtual table.
func (s *SQLiteStore) GetTableSizes() ([]TableSize, error) {
	query := `
		SELECT name, SUM(pgsize) as size_bytes
		FROM dbstat
		WHERE name NOT LIKE 'sqlite_%'
		GROUP BY name
		ORDER BY size_bytes DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes []TableSize
	for rows.Next() {
		var ts TableSize
		if err := rows.Scan(&ts.Name, &ts.Bytes); err != nil {
			return nil, err
		}
		sizes = append(sizes, ts)
	}
	return sizes, rows.Err()
}

// CountSessions returns the number of stored sessions.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// CleanupGenerationLogs keeps only the newest keep rows per agent type.
// Returns the number of deleted rows.
func (s *SQLiteStore) CleanupGenerationLogs(ctx context.Context, keep int) (int64, error) {
	start := time.Now()
	query := `
		DELETE FROM generation_logs
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY agent_type ORDER BY created_at DESC, id DESC) AS rn
				FROM generation_logs
			) WHERE rn <= ?
		)
	`
	res, err := s.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup generation logs: %w", err)
	}
	n, _ := res.RowsAffected()
	RecordCleanupDeleted("generation_logs", n)
	RecordCleanupDuration("generation_logs", time.Since(start).Seconds())
	return n, nil
}

// CleanupSessions deletes sessions idle for longer than olderThan, together
// with their messages.
func (s *SQLiteStore) CleanupSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	start := time.Now()
	cutoff := formatTime(time.Now().Add(-olderThan))
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	RecordCleanupDeleted("sessions", n)
	RecordCleanupDuration("sessions", time.Since(start).Seconds())
	return n, nil
}

// RefreshMetrics updates the size and session gauges.
func (s *SQLiteStore) RefreshMetrics(ctx context.Context) {
	if size, err := s.GetDBSize(); err == nil {
		SetStorageSize(size)
	}
	if sizes, err := s.GetTableSizes(); err == nil {
		for _, ts := range sizes {
			SetTableSize(ts.Name, ts.Bytes)
		}
	}
	if n, err := s.CountSessions(ctx); err == nil {
		SetSessionCount(n)
	}
}
