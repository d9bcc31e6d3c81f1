package openrouter

import (
	"context"
	"errors"
	"fmt"

	"github.com/runixer/heirloom/internal/llm"
)

// ErrNoChoices is returned when a completion carries no choices.
var ErrNoChoices = errors.New("openrouter: response has no choices")

// Provider adapts a Client to llm.Provider for one model.
type Provider struct {
	client Client
	model  string
}

// NewProvider creates a Provider.
func NewProvider(client Client, model string) *Provider {
	return &Provider{client: client, model: model}
}

// Complete sends the conversation and returns the first choice's content.
// A schema is sent as a json_schema response format.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	chatReq := ChatCompletionRequest{
		Model:    p.model,
		Messages: make([]Message, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, Message{Role: string(m.Role), Content: m.Content})
	}
	if req.Temperature > 0 {
		t := req.Temperature
		chatReq.Temperature = &t
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = ResponseFormatJSONSchema{
			Type: "json_schema",
			JSONSchema: JSONSchema{
				Name:   req.Schema.Name,
				Strict: req.Schema.Strict,
				Schema: req.Schema.Definition,
			},
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openrouter completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

var _ llm.Provider = (*Provider)(nil)
