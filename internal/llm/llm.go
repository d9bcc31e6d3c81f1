// Package llm defines the boundary between the dialogue pipeline and the
// text-generation providers. Adapters live in their own packages
// (openrouter, gemini) and only need to satisfy Provider.
package llm

import "context"

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. Order is significant.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Schema describes a strict structured-output contract.
// Definition is a JSON Schema object.
type Schema struct {
	Name       string
	Strict     bool
	Definition map[string]any
}

// Request is a single completion call.
type Request struct {
	Messages    []Message
	Schema      *Schema // nil for free text
	Temperature float64
}

// Provider turns an ordered message list into generated text.
// Implementations may return transient errors; callers decide whether to retry.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Complete implements Provider.
func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
