// Package gemini is an llm.Provider backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/runixer/heirloom/internal/jobtype"
	"github.com/runixer/heirloom/internal/llm"
)

// ErrEmptyResponse is returned when no candidate carries text, for example
// when the prompt was blocked.
var ErrEmptyResponse = errors.New("gemini: empty response")

// contentGenerator is the part of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements llm.Provider for one Gemini model.
type Provider struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

// NewProvider creates a Gemini API client for model.
func NewProvider(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini.NewProvider: %w", err)
	}
	return newProvider(client.Models, model, logger), nil
}

func newProvider(models contentGenerator, model string, logger *slog.Logger) *Provider {
	return &Provider{
		models: models,
		model:  model,
		logger: logger.With("component", "gemini_provider"),
	}
}

// Complete sends the conversation. System messages become the system
// instruction; assistant messages are sent with the model role.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	start := time.Now()
	contents, system := toContents(req.Messages)

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: system}},
		}
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}
	if req.Schema != nil {
		schema, err := ConvertSchema(req.Schema.Definition)
		if err != nil {
			return "", fmt.Errorf("convert schema %q: %w", req.Schema.Name, err)
		}
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}

	p.logger.Debug("gemini response",
		"model", p.model,
		"job", jobtype.FromContext(ctx),
		"duration", time.Since(start),
		"chars", len(text),
	)
	return text, nil
}

func toContents(messages []llm.Message) ([]*genai.Content, string) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
			continue
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return contents, strings.Join(system, "\n\n")
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

var _ llm.Provider = (*Provider)(nil)
