// Package scriptwriter provides the agent that proposes the user's next
// lines after a persona reply.
package scriptwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/runixer/heirloom/internal/agent"
	"github.com/runixer/heirloom/internal/agent/prompts"
	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/i18n"
	"github.com/runixer/heirloom/internal/llm"
)

// ErrNoReply is returned when there is no persona reply to analyze.
var ErrNoReply = errors.New("scriptwriter: empty persona reply")

// Agent generates reply options for the user.
type Agent struct {
	executor   *agent.Executor
	builder    *prompts.Builder
	translator *i18n.Translator
	cfg        *config.Config
	logger     *slog.Logger
}

// New creates a new scriptwriter agent.
func New(
	executor *agent.Executor,
	builder *prompts.Builder,
	translator *i18n.Translator,
	cfg *config.Config,
	logger *slog.Logger,
) *Agent {
	return &Agent{
		executor:   executor,
		builder:    builder,
		translator: translator,
		cfg:        cfg,
		logger:     logger.With("agent", agent.TypeScriptwriter),
	}
}

// Type returns the agent type.
func (a *Agent) Type() agent.AgentType {
	return agent.TypeScriptwriter
}

// Execute analyzes the persona reply in req.Query. Structured is always a
// *Options; when generation or decoding fails it is the empty set and
// Degraded is set.
func (a *Agent) Execute(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	shared := agent.ResolveShared(ctx, req)
	if shared == nil || shared.Persona == nil {
		return nil, fmt.Errorf("scriptwriter: no persona in shared context")
	}
	reply := strings.TrimSpace(req.Query)
	if reply == "" {
		return nil, ErrNoReply
	}

	systemPrompt, err := a.builder.BuildScriptwriter(shared.Persona, reply)
	if err != nil {
		return nil, fmt.Errorf("failed to build system prompt: %w", err)
	}
	lang := shared.Language
	if lang == "" {
		lang = a.builder.Language()
	}

	start := time.Now()
	result := a.executor.Generate(ctx, agent.GenerateRequest{
		AgentType: agent.TypeScriptwriter,
		SessionID: shared.SessionID,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: a.translator.Get(lang, "scriptwriter.user_prompt")},
		},
		Schema:      Schema(),
		Temperature: a.cfg.Generation.OptionsTemperature,
		MaxRetries:  a.cfg.Generation.MaxRetries,
	})

	resp := &agent.Response{
		Content:    result.Text,
		Structured: &Options{},
		Duration:   time.Since(start),
		Attempts:   result.Attempts,
	}
	if !result.OK() {
		resp.Degraded = true
		return resp, nil
	}

	opts, err := Decode(result.Text)
	if err != nil {
		a.logger.Warn("discarding reply options", "session_id", shared.SessionID, "error", err)
		resp.Degraded = true
		return resp, nil
	}
	resp.Structured = &opts
	return resp, nil
}
