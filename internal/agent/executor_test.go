package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/heirloom/internal/agentlog"
	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/storage"
	"github.com/runixer/heirloom/internal/testutil"
)

func testRequest() GenerateRequest {
	return GenerateRequest{
		AgentType: TypePersona,
		SessionID: "session-1",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a chair."},
			{Role: llm.RoleUser, Content: "Hello"},
		},
		Temperature: 0.7,
	}
}

func TestExecutor_Generate(t *testing.T) {
	tests := []struct {
		name            string
		outputs         []string
		errs            []error
		wantText        string
		wantFailure     FailureKind
		wantLastFailure FailureKind
		wantAttempts    int
	}{
		{
			name:         "valid on first attempt",
			outputs:      []string{"Bonjour, I am a chair."},
			errs:         []error{nil},
			wantText:     "Bonjour, I am a chair.",
			wantAttempts: 1,
		},
		{
			name:         "valid after invalid",
			outputs:      []string{"Привет!", "Hello, friend."},
			errs:         []error{nil, nil},
			wantText:     "Hello, friend.",
			wantAttempts: 2,
		},
		{
			name:         "valid after provider error",
			outputs:      []string{"", "Hello."},
			errs:         []error{errors.New("503"), nil},
			wantText:     "Hello.",
			wantAttempts: 2,
		},
		{
			name:            "three invalid outputs exhaust the loop",
			outputs:         []string{"你好", "Привет", "😀"},
			errs:            []error{nil, nil, nil},
			wantFailure:     FailureExhausted,
			wantLastFailure: FailureValidation,
			wantAttempts:    3,
		},
		{
			name:            "provider errors exhaust the loop",
			outputs:         []string{"", "", ""},
			errs:            []error{assert.AnError, assert.AnError, assert.AnError},
			wantFailure:     FailureExhausted,
			wantLastFailure: FailureProvider,
			wantAttempts:    3,
		},
		{
			name:         "reasoning stripped before validation",
			outputs:      []string{"<think>Ответ по-русски?</think>\n  Hello there.  "},
			errs:         []error{nil},
			wantText:     "Hello there.",
			wantAttempts: 1,
		},
		{
			name:            "empty after stripping is invalid",
			outputs:         []string{"<think>hmm</think>", "   ", "<think>again"},
			errs:            []error{nil, nil, nil},
			wantFailure:     FailureExhausted,
			wantLastFailure: FailureValidation,
			wantAttempts:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(testutil.MockProvider)
			for i := range tt.outputs {
				provider.On("Complete", mock.Anything, mock.Anything).
					Return(tt.outputs[i], tt.errs[i]).Once()
			}

			exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{MaxRetries: 3})
			result := exec.Generate(context.Background(), testRequest())

			assert.Equal(t, tt.wantText, result.Text)
			assert.Equal(t, tt.wantFailure, result.Failure)
			assert.Equal(t, tt.wantLastFailure, result.LastFailure)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, tt.wantFailure == FailureNone, result.OK())
			provider.AssertNumberOfCalls(t, "Complete", tt.wantAttempts)
		})
	}
}

func TestExecutor_PassesRequest(t *testing.T) {
	provider := new(testutil.MockProvider)
	schema := &llm.Schema{Name: "options", Strict: true}
	req := testRequest()
	req.Schema = schema
	req.Temperature = 0.9

	provider.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return r.Schema == schema && r.Temperature == 0.9 && len(r.Messages) == 2
	})).Return("ok", nil).Once()

	exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{})
	result := exec.Generate(context.Background(), req)

	assert.True(t, result.OK())
	provider.AssertExpectations(t)
}

func TestExecutor_RequestRetriesOverrideDefault(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("Привет", nil)

	exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{MaxRetries: 5})

	req := testRequest()
	req.MaxRetries = 2
	result := exec.Generate(context.Background(), req)
	assert.Equal(t, 2, result.Attempts)
	provider.AssertNumberOfCalls(t, "Complete", 2)

	result = exec.Generate(context.Background(), testRequest())
	assert.Equal(t, 5, result.Attempts)
}

func TestExecutor_DefaultRetries(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("", assert.AnError)

	exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{})
	result := exec.Generate(context.Background(), testRequest())

	assert.Equal(t, DefaultMaxRetries, result.Attempts)
	assert.Equal(t, FailureExhausted, result.Failure)
}

func TestExecutor_CanceledBeforeStart(t *testing.T) {
	provider := new(testutil.MockProvider)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{})
	result := exec.Generate(ctx, testRequest())

	assert.Equal(t, FailureCanceled, result.Failure)
	assert.Empty(t, result.Text)
	assert.Zero(t, result.Attempts)
	provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestExecutor_CanceledDuringCall(t *testing.T) {
	provider := new(testutil.MockProvider)
	ctx, cancel := context.WithCancel(context.Background())

	provider.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { cancel() }).
		Return("", context.Canceled).Once()

	exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{MaxRetries: 3})
	result := exec.Generate(ctx, testRequest())

	assert.Equal(t, FailureCanceled, result.Failure)
	assert.Equal(t, FailureProvider, result.LastFailure)
	assert.Equal(t, 1, result.Attempts)
	provider.AssertNumberOfCalls(t, "Complete", 1)
}

func TestExecutor_CallTimeout(t *testing.T) {
	provider := llm.ProviderFunc(func(ctx context.Context, _ llm.Request) (string, error) {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > time.Second {
			return "", errors.New("missing call deadline")
		}
		return "On time.", nil
	})

	exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{CallTimeout: 500 * time.Millisecond})
	result := exec.Generate(context.Background(), testRequest())

	require.True(t, result.OK())
	assert.Equal(t, "On time.", result.Text)
}

func TestExecutor_CustomPolicy(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("Hi 😀", nil).Once()

	exec := NewExecutor(provider, nil, testutil.TestLogger(), ExecutorOptions{
		Policy: NewCharsetPolicy(DefaultMaxRune, "😀"),
	})
	result := exec.Generate(context.Background(), testRequest())

	assert.True(t, result.OK())
	assert.Equal(t, "Hi 😀", result.Text)
}

func TestExecutor_RecordsGenerationLog(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("Привет", nil).Once()
	provider.On("Complete", mock.Anything, mock.Anything).Return("Hello.", nil).Once()

	repo := new(testutil.MockGenerationLogRepository)
	var logged storage.GenerationLog
	repo.On("AddGenerationLog", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { logged = args.Get(1).(storage.GenerationLog) }).
		Return(nil).Once()

	agentLogger := agentlog.NewLogger(repo, testutil.TestLogger(), true)
	exec := NewExecutor(provider, agentLogger, testutil.TestLogger(), ExecutorOptions{Model: "test-model"})

	result := exec.Generate(context.Background(), testRequest())
	require.True(t, result.OK())

	repo.AssertExpectations(t)
	assert.Equal(t, "session-1", logged.SessionID)
	assert.Equal(t, "persona", logged.AgentType)
	assert.Equal(t, "You are a chair.", logged.InputPrompt)
	assert.Equal(t, "Hello.", logged.OutputResponse)
	assert.Equal(t, "test-model", logged.Model)
	assert.Equal(t, 2, logged.AttemptCount)
	assert.True(t, logged.Success)
	assert.Contains(t, logged.Attempts, "validation")
	assert.Same(t, agentLogger, exec.AgentLogger())
}

func TestExecutor_RecordsFailure(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("", assert.AnError)

	repo := new(testutil.MockGenerationLogRepository)
	repo.On("AddGenerationLog", mock.Anything, mock.MatchedBy(func(l storage.GenerationLog) bool {
		return !l.Success && l.ErrorMessage == "exhausted: last provider" && l.AttemptCount == 2
	})).Return(nil).Once()

	exec := NewExecutor(provider, agentlog.NewLogger(repo, testutil.TestLogger(), true), testutil.TestLogger(), ExecutorOptions{MaxRetries: 2})
	result := exec.Generate(context.Background(), testRequest())

	assert.False(t, result.OK())
	repo.AssertExpectations(t)
}

func TestExecutor_DisabledLoggerSkipsRepository(t *testing.T) {
	provider := new(testutil.MockProvider)
	provider.On("Complete", mock.Anything, mock.Anything).Return("Hello.", nil)
	repo := new(testutil.MockGenerationLogRepository)

	exec := NewExecutor(provider, agentlog.NewLogger(repo, testutil.TestLogger(), false), testutil.TestLogger(), ExecutorOptions{})
	exec.Generate(context.Background(), testRequest())

	repo.AssertNotCalled(t, "AddGenerationLog", mock.Anything, mock.Anything)
}
