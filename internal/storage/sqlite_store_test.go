package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store, err := NewSQLiteStore(logger, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	require.NoError(t, store.Init())

	cleanup := func() {
		store.Close()
	}
	return store, cleanup
}

func TestNewSQLiteStore(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NotNil(t, store)
	assert.NotNil(t, store.db)
}

func TestInit(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	// Init is idempotent
	require.NoError(t, store.Init())

	for _, table := range []string{"sessions", "messages", "generation_logs"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "Table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestSQLiteStore_SessionRepository(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	runSessionRepositoryTests(t, store)
}

func TestSQLiteStore_DeleteSessionCascades(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	s, err := store.CreateSession(ctx, Session{Persona: "Rosewood Chair"})
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, s.ID, Message{Role: "user", Content: "hi"}))
	require.NoError(t, store.DeleteSession(ctx, s.ID))

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", s.ID).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestSQLiteStore_GenerationLogs(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.AddGenerationLog(ctx, GenerationLog{
		SessionID:      "s1",
		AgentType:      "persona",
		InputPrompt:    "You are a chair.",
		OutputResponse: "Bonjour.",
		Model:          "test-model",
		Temperature:    0.7,
		AttemptCount:   2,
		Attempts:       `{"attempts":[]}`,
		Success:        true,
	}))
	require.NoError(t, store.AddGenerationLog(ctx, GenerationLog{
		SessionID:    "s1",
		AgentType:    "scriptwriter",
		Success:      false,
		ErrorMessage: "exhausted: last validation",
	}))
	require.NoError(t, store.AddGenerationLog(ctx, GenerationLog{SessionID: "s2", AgentType: "persona", Success: true}))

	all, err := store.GetGenerationLogs(ctx, GenerationLogFilter{}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bySession, err := store.GetGenerationLogs(ctx, GenerationLogFilter{SessionID: "s1"}, 10)
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	failed := false
	onlyFailed, err := store.GetGenerationLogs(ctx, GenerationLogFilter{Success: &failed}, 10)
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, "scriptwriter", onlyFailed[0].AgentType)
	assert.Equal(t, "exhausted: last validation", onlyFailed[0].ErrorMessage)

	persona, err := store.GetGenerationLogs(ctx, GenerationLogFilter{SessionID: "s1", AgentType: "persona"}, 10)
	require.NoError(t, err)
	require.Len(t, persona, 1)
	assert.Equal(t, "Bonjour.", persona[0].OutputResponse)
	assert.Equal(t, 2, persona[0].AttemptCount)
	assert.InDelta(t, 0.7, persona[0].Temperature, 1e-9)
	assert.False(t, persona[0].CreatedAt.IsZero())
}

func TestSQLiteStore_Maintenance(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store, err := NewSQLiteStore(logger, filepath.Join(t.TempDir(), "heirloom.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Init())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AddGenerationLog(ctx, GenerationLog{AgentType: "persona"}))
	}
	require.NoError(t, store.AddGenerationLog(ctx, GenerationLog{AgentType: "scriptwriter"}))

	deleted, err := store.CleanupGenerationLogs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	old, err := store.CreateSession(ctx, Session{Persona: "Oak Cradle", CreatedAt: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = store.CreateSession(ctx, Session{Persona: "Oak Cradle"})
	require.NoError(t, err)

	n, err := store.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := store.CleanupSessions(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	_, err = store.GetSession(ctx, old.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	size, err := store.GetDBSize()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	store.RefreshMetrics(ctx)
}
