// Package agentlog records every generation agent call (all of its attempts)
// into the generation log repository for later inspection.
package agentlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/runixer/heirloom/internal/storage"
)

// AgentType represents the type of generation agent.
type AgentType string

const (
	AgentPersona      AgentType = "persona"
	AgentScriptwriter AgentType = "scriptwriter"
)

// Entry represents a log entry for one agent call.
type Entry struct {
	SessionID      string
	AgentType      AgentType
	InputPrompt    string
	InputMessages  interface{} // Will be JSON serialized
	OutputResponse string
	OutputParsed   interface{} // Will be JSON serialized
	Model          string
	Temperature    float64
	DurationMs     int
	Metadata       interface{} // Agent-specific data, will be JSON serialized
	Success        bool
	ErrorMessage   string

	// Attempts holds every try of the validated retry loop.
	Attempts *Attempts
}

// Logger persists agent calls.
type Logger struct {
	repo    storage.GenerationLogRepository
	logger  *slog.Logger
	enabled bool
}

// NewLogger creates a new agent logger.
// If enabled is false, Log() calls will be no-ops.
func NewLogger(repo storage.GenerationLogRepository, logger *slog.Logger, enabled bool) *Logger {
	return &Logger{
		repo:    repo,
		logger:  logger,
		enabled: enabled,
	}
}

// Log records an agent call entry.
// If the logger is disabled or repo is nil, this is a no-op.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if l == nil || !l.enabled || l.repo == nil {
		return
	}

	attemptCount := 0
	if entry.Attempts != nil {
		attemptCount = len(entry.Attempts.Attempts)
	}

	log := storage.GenerationLog{
		SessionID:      entry.SessionID,
		AgentType:      string(entry.AgentType),
		InputPrompt:    entry.InputPrompt,
		InputMessages:  serializeJSON(entry.InputMessages),
		OutputResponse: entry.OutputResponse,
		OutputParsed:   serializeJSON(entry.OutputParsed),
		Model:          entry.Model,
		Temperature:    entry.Temperature,
		AttemptCount:   attemptCount,
		Attempts:       serializeJSON(entry.Attempts),
		DurationMs:     entry.DurationMs,
		Metadata:       serializeJSON(entry.Metadata),
		Success:        entry.Success,
		ErrorMessage:   entry.ErrorMessage,
		CreatedAt:      time.Now(),
	}

	if err := l.repo.AddGenerationLog(ctx, log); err != nil {
		l.logger.Warn("failed to save generation log",
			"agent_type", entry.AgentType,
			"session_id", entry.SessionID,
			"error", err,
		)
	}
}

// serializeJSON converts interface{} to JSON string.
// Returns empty string for nil or on error.
func serializeJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if a, ok := v.(*Attempts); ok && a == nil {
		return ""
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Enabled returns whether logging is enabled.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}
