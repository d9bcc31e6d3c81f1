package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AddGenerationLog inserts a new generation log entry.
func (s *SQLiteStore) AddGenerationLog(ctx context.Context, log GenerationLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO generation_logs (
			session_id, agent_type, input_prompt, input_messages, output_response,
			output_parsed, model, temperature, attempt_count, attempts,
			duration_ms, metadata, success, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		log.SessionID,
		log.AgentType,
		log.InputPrompt,
		log.InputMessages,
		log.OutputResponse,
		log.OutputParsed,
		log.Model,
		log.Temperature,
		log.AttemptCount,
		log.Attempts,
		log.DurationMs,
		log.Metadata,
		log.Success,
		log.ErrorMessage,
		formatTime(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add generation log: %w", err)
	}
	return nil
}

// GetGenerationLogs returns the newest logs matching filter.
func (s *SQLiteStore) GetGenerationLogs(ctx context.Context, filter GenerationLogFilter, limit int) ([]GenerationLog, error) {
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.AgentType != "" {
		conditions = append(conditions, "agent_type = ?")
		args = append(args, filter.AgentType)
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filter.Success)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := `
		SELECT id, session_id, agent_type, input_prompt, input_messages, output_response,
			   output_parsed, model, temperature, attempt_count, attempts,
			   duration_ms, metadata, success, error_message, created_at
		FROM generation_logs ` + whereClause + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation logs: %w", err)
	}
	defer rows.Close()

	return scanGenerationLogs(rows)
}

func scanGenerationLogs(rows *sql.Rows) ([]GenerationLog, error) {
	var logs []GenerationLog
	for rows.Next() {
		var log GenerationLog
		var inputPrompt, inputMessages, outputResponse, outputParsed sql.NullString
		var model, attempts, metadata, errorMessage sql.NullString
		var temperature sql.NullFloat64

		if err := rows.Scan(
			&log.ID, &log.SessionID, &log.AgentType,
			&inputPrompt, &inputMessages, &outputResponse,
			&outputParsed, &model, &temperature, &log.AttemptCount, &attempts,
			&log.DurationMs, &metadata, &log.Success, &errorMessage, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation log: %w", err)
		}

		log.InputPrompt = inputPrompt.String
		log.InputMessages = inputMessages.String
		log.OutputResponse = outputResponse.String
		log.OutputParsed = outputParsed.String
		log.Model = model.String
		log.Temperature = temperature.Float64
		log.Attempts = attempts.String
		log.Metadata = metadata.String
		log.ErrorMessage = errorMessage.String

		logs = append(logs, log)
	}
	return logs, rows.Err()
}
