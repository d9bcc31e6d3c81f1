// Package testutil provides centralized test mocks, fixtures, and helpers.
// All test files should import mocks from here instead of defining their own.
package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/speech"
	"github.com/runixer/heirloom/internal/storage"
)

// MockProvider implements llm.Provider for tests.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockSynthesizer implements speech.Synthesizer for tests.
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req speech.SynthesisRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockRecognizer implements speech recognition for tests.
type MockRecognizer struct {
	mock.Mock
}

func (m *MockRecognizer) Recognize(ctx context.Context, audio []byte) (string, error) {
	args := m.Called(ctx, audio)
	return args.String(0), args.Error(1)
}

// MockSessionRepository implements storage.SessionRepository for tests.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) CreateSession(ctx context.Context, session storage.Session) (storage.Session, error) {
	args := m.Called(ctx, session)
	return args.Get(0).(storage.Session), args.Error(1)
}

func (m *MockSessionRepository) GetSession(ctx context.Context, id string) (storage.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storage.Session), args.Error(1)
}

func (m *MockSessionRepository) AppendMessages(ctx context.Context, sessionID string, messages ...storage.Message) error {
	args := m.Called(ctx, sessionID, messages)
	return args.Error(0)
}

func (m *MockSessionRepository) GetHistory(ctx context.Context, sessionID string, limit int) ([]storage.Message, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Message), args.Error(1)
}

func (m *MockSessionRepository) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockGenerationLogRepository implements storage.GenerationLogRepository for tests.
type MockGenerationLogRepository struct {
	mock.Mock
}

func (m *MockGenerationLogRepository) AddGenerationLog(ctx context.Context, log storage.GenerationLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockGenerationLogRepository) GetGenerationLogs(ctx context.Context, filter storage.GenerationLogFilter, limit int) ([]storage.GenerationLog, error) {
	args := m.Called(ctx, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.GenerationLog), args.Error(1)
}

var (
	_ llm.Provider                    = (*MockProvider)(nil)
	_ speech.Synthesizer              = (*MockSynthesizer)(nil)
	_ storage.SessionRepository       = (*MockSessionRepository)(nil)
	_ storage.GenerationLogRepository = (*MockGenerationLogRepository)(nil)
)
