package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySessionStore keeps sessions in process memory. History is lost on
// restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	messages map[string][]Message
	nextID   int64
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
		messages: make(map[string][]Message),
	}
}

func (m *MemorySessionStore) CreateSession(_ context.Context, session Session) (Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = session.CreatedAt

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return Session{}, fmt.Errorf("failed to create session: %s already exists", session.ID)
	}
	m.sessions[session.ID] = session
	recordSessionCreated("memory")
	return session, nil
}

func (m *MemorySessionStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

func (m *MemorySessionStore) AppendMessages(_ context.Context, sessionID string, messages ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	now := time.Now()
	for _, msg := range messages {
		m.nextID++
		msg.ID = m.nextID
		msg.SessionID = sessionID
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		m.messages[sessionID] = append(m.messages[sessionID], msg)
	}
	session.UpdatedAt = now
	m.sessions[sessionID] = session
	return nil
}

func (m *MemorySessionStore) GetHistory(_ context.Context, sessionID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Message, len(all))
	copy(out, all)
	return out, nil
}

func (m *MemorySessionStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}
