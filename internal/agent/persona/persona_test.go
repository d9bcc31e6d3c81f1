package persona_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/heirloom/internal/agent"
	"github.com/runixer/heirloom/internal/agent/persona"
	"github.com/runixer/heirloom/internal/agent/prompts"
	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/testutil"
)

func newAgent(t *testing.T, provider llm.Provider) *persona.Agent {
	t.Helper()
	cfg := testutil.TestConfig()
	translator := testutil.TestTranslator(t)
	executor := agent.NewExecutor(provider, nil, testutil.TestLogger(), agent.ExecutorOptions{MaxRetries: cfg.Generation.MaxRetries})
	builder := prompts.NewBuilder(translator, "en", cfg.Generation.WordLimit)
	return persona.New(executor, builder, translator, cfg)
}

func TestPersona_Execute(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "Hi chair"},
		{Role: llm.RoleAssistant, Content: "Bonjour!"},
	}

	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return r.Schema == nil &&
			r.Temperature == 0.7 &&
			len(r.Messages) == 4 &&
			r.Messages[0].Role == llm.RoleSystem &&
			r.Messages[1].Content == "Hi chair" &&
			r.Messages[2].Content == "Bonjour!" &&
			r.Messages[3] == llm.Message{Role: llm.RoleUser, Content: "Who made you?"}
	})).Return("*creaks* Jan van Mekeren, mon ami.", nil).Once()

	a := newAgent(t, provider)
	assert.Equal(t, agent.TypePersona, a.Type())

	profile := testutil.TestProfile()
	resp, err := a.Execute(context.Background(), &agent.Request{
		Shared:   agent.NewSharedContext("s1", &profile, "en"),
		Query:    "  Who made you?  ",
		Messages: history,
	})
	require.NoError(t, err)
	assert.Equal(t, "*creaks* Jan van Mekeren, mon ami.", resp.Content)
	assert.False(t, resp.Degraded)
	assert.Equal(t, 1, resp.Attempts)
	provider.AssertExpectations(t)
}

func TestPersona_SharedFromContext(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("Hello.", nil).Once()

	profile := testutil.TestProfile()
	ctx := agent.WithContext(context.Background(), agent.NewSharedContext("s1", &profile, "en"))

	resp, err := newAgent(t, provider).Execute(ctx, &agent.Request{Query: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello.", resp.Content)
}

func TestPersona_ThreeInvalidOutputsGiveFallback(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("Здравствуйте", nil).Times(3)

	profile := testutil.TestProfile()
	resp, err := newAgent(t, provider).Execute(context.Background(), &agent.Request{
		Shared: agent.NewSharedContext("s1", &profile, "en"),
		Query:  "Hello",
	})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, "I seem to be lost for words...", resp.Content)
	assert.Equal(t, 3, resp.Attempts)

	result, ok := resp.Structured.(agent.Result)
	require.True(t, ok)
	assert.Equal(t, agent.FailureExhausted, result.Failure)
	assert.Equal(t, agent.FailureValidation, result.LastFailure)
	provider.AssertNumberOfCalls(t, "Complete", 3)
}

func TestPersona_Errors(t *testing.T) {
	provider := new(testutil.MockProvider)
	a := newAgent(t, provider)
	profile := testutil.TestProfile()

	_, err := a.Execute(context.Background(), &agent.Request{Query: "Hi"})
	assert.ErrorIs(t, err, persona.ErrNoPersona)

	_, err = a.Execute(context.Background(), &agent.Request{
		Shared: agent.NewSharedContext("s1", &profile, "en"),
		Query:  " ",
	})
	assert.ErrorIs(t, err, persona.ErrEmptyInput)

	provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestPersona_Fallback(t *testing.T) {
	a := newAgent(t, new(testutil.MockProvider))
	assert.Equal(t, "I seem to be lost for words...", a.Fallback(""))
	assert.Equal(t, "I seem to be lost for words...", a.Fallback("nl"))
}
