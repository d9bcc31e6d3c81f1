// Package testing provides test doubles for the dialogue agents.
package testing

import (
	"context"

	"github.com/runixer/heirloom/internal/agent"
	"github.com/runixer/heirloom/internal/agent/scriptwriter"
	"github.com/stretchr/testify/mock"
)

// MockAgent is a testify mock for agent.Agent.
type MockAgent struct {
	mock.Mock
}

// Type returns the agent type.
func (m *MockAgent) Type() agent.AgentType {
	args := m.Called()
	return agent.AgentType(args.String(0))
}

// Execute runs the mock agent.
func (m *MockAgent) Execute(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agent.Response), args.Error(1)
}

// Reply is a persona response carrying text.
func Reply(text string) *agent.Response {
	return &agent.Response{Content: text, Attempts: 1}
}

// Fallback is a degraded persona response.
func Fallback(text string, attempts int) *agent.Response {
	return &agent.Response{Content: text, Attempts: attempts, Degraded: true}
}

// Suggestions is a scriptwriter response with the given lines.
func Suggestions(strategy string, lines ...string) *agent.Response {
	return &agent.Response{
		Structured: &scriptwriter.Options{Strategy: strategy, Options: lines},
		Attempts:   1,
	}
}

var _ agent.Agent = (*MockAgent)(nil)
