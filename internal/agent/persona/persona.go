// Package persona provides the agent that speaks as the museum object.
package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/runixer/heirloom/internal/agent"
	"github.com/runixer/heirloom/internal/agent/prompts"
	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/i18n"
	"github.com/runixer/heirloom/internal/llm"
)

// FallbackKey is the translation of the line used when generation fails.
const FallbackKey = "dialogue.fallback_reply"

var (
	// ErrNoPersona is returned when the request carries no persona.
	ErrNoPersona = errors.New("persona agent: no persona in shared context")
	// ErrEmptyInput is returned for a blank user message.
	ErrEmptyInput = errors.New("persona agent: empty user input")
)

// Agent generates the persona's reply to one user message.
type Agent struct {
	executor   *agent.Executor
	builder    *prompts.Builder
	translator *i18n.Translator
	cfg        *config.Config
}

// New creates a new persona agent.
func New(
	executor *agent.Executor,
	builder *prompts.Builder,
	translator *i18n.Translator,
	cfg *config.Config,
) *Agent {
	return &Agent{
		executor:   executor,
		builder:    builder,
		translator: translator,
		cfg:        cfg,
	}
}

// Type returns the agent type.
func (a *Agent) Type() agent.AgentType {
	return agent.TypePersona
}

// Execute answers req.Query in character. req.Messages is the already
// trimmed history. A failed generation is not an error: the response then
// carries the fallback line and Degraded is set.
func (a *Agent) Execute(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	shared := agent.ResolveShared(ctx, req)
	if shared == nil || shared.Persona == nil {
		return nil, ErrNoPersona
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyInput
	}

	systemPrompt, err := a.builder.Build(shared.Persona)
	if err != nil {
		return nil, fmt.Errorf("failed to build system prompt: %w", err)
	}

	messages := make([]llm.Message, 0, len(req.Messages)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, req.Messages...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	start := time.Now()
	result := a.executor.Generate(ctx, agent.GenerateRequest{
		AgentType:   agent.TypePersona,
		SessionID:   shared.SessionID,
		Messages:    messages,
		Temperature: a.cfg.Generation.ReplyTemperature,
		MaxRetries:  a.cfg.Generation.MaxRetries,
	})

	resp := &agent.Response{
		Content:  result.Text,
		Duration: time.Since(start),
		Attempts: result.Attempts,
	}
	if !result.OK() {
		resp.Content = a.Fallback(shared.Language)
		resp.Degraded = true
		resp.Structured = result
	}
	return resp, nil
}

// Fallback returns the fixed line used when no valid reply was generated.
func (a *Agent) Fallback(lang string) string {
	if lang == "" {
		lang = a.cfg.Bot.Language
	}
	return a.translator.Get(lang, FallbackKey)
}
