// Package agent provides the generation agents of a dialogue turn and the
// validated retry loop they share.
package agent

import (
	"context"
	"time"

	"github.com/runixer/heirloom/internal/llm"
)

// AgentType identifies an agent.
type AgentType string

const (
	TypePersona      AgentType = "persona"
	TypeScriptwriter AgentType = "scriptwriter"
)

// String implements fmt.Stringer.
func (t AgentType) String() string {
	return string(t)
}

// Agent is the core interface all agents implement.
type Agent interface {
	// Type returns the agent's type identifier.
	Type() AgentType

	// Execute runs the agent with the given request.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request is the unified input for all agents.
type Request struct {
	// Shared carries the persona and session of the turn.
	Shared *SharedContext

	Query    string        // User input (persona) or persona reply (scriptwriter)
	Messages []llm.Message // Conversation history, already trimmed
}

// Response is the unified output from all agents.
type Response struct {
	Content    string // Validated text, or the fallback line when Degraded
	Structured any    // Parsed result (for schema agents)

	Duration time.Duration
	Attempts int
	Degraded bool
}

// FailureKind classifies why a generation produced no text.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureValidation means the output broke the character policy.
	FailureValidation
	// FailureProvider means the adapter returned an error.
	FailureProvider
	// FailureExhausted means every attempt failed.
	FailureExhausted
	// FailureCanceled means the context ended before a valid output.
	FailureCanceled
)

// String implements fmt.Stringer.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureValidation:
		return "validation"
	case FailureProvider:
		return "provider"
	case FailureExhausted:
		return "exhausted"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// GenerateRequest is one run of the validated retry loop.
type GenerateRequest struct {
	AgentType   AgentType
	SessionID   string
	Messages    []llm.Message
	Schema      *llm.Schema
	Temperature float64
	// MaxRetries is the number of attempts. Zero uses the executor default.
	MaxRetries int
}

// Result is either validated text or a terminal failure, never both.
type Result struct {
	Text    string
	Failure FailureKind
	// LastFailure is the kind of the last failed attempt when Failure is
	// FailureExhausted or FailureCanceled.
	LastFailure FailureKind
	Attempts    int
	Duration    time.Duration
}

// OK reports whether the result carries validated text.
func (r Result) OK() bool {
	return r.Failure == FailureNone
}
