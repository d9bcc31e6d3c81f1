package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/runixer/heirloom/internal/agentlog"
	"github.com/runixer/heirloom/internal/llm"
)

// DefaultMaxRetries is the attempt count when neither the request nor the
// executor sets one.
const DefaultMaxRetries = 3

// ExecutorOptions configure an Executor.
type ExecutorOptions struct {
	// Model names the provider model in logs.
	Model string
	// Policy validates outputs. The zero value means DefaultCharsetPolicy.
	Policy CharsetPolicy
	// CallTimeout bounds one provider call. Zero means no extra deadline.
	CallTimeout time.Duration
	// MaxRetries is the default attempt count.
	MaxRetries int
}

// Executor runs the validated retry loop against a provider.
type Executor struct {
	provider    llm.Provider
	policy      CharsetPolicy
	model       string
	callTimeout time.Duration
	maxRetries  int
	agentLogger *agentlog.Logger
	logger      *slog.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(
	provider llm.Provider,
	agentLogger *agentlog.Logger,
	logger *slog.Logger,
	opts ExecutorOptions,
) *Executor {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	policy := opts.Policy
	if policy.MaxRune == 0 && policy.Extra == nil {
		policy = DefaultCharsetPolicy()
	}
	return &Executor{
		provider:    provider,
		policy:      policy,
		model:       opts.Model,
		callTimeout: opts.CallTimeout,
		maxRetries:  maxRetries,
		agentLogger: agentLogger,
		logger:      logger.With("component", "agent_executor"),
	}
}

// Generate calls the provider until it returns text that passes the
// character policy or the attempts run out. Reasoning blocks are stripped
// and the text trimmed before validation. It never returns partial text.
func (e *Executor) Generate(ctx context.Context, req GenerateRequest) Result {
	start := time.Now()
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.maxRetries
	}
	logger := e.logger.With("agent", req.AgentType, "session_id", req.SessionID)
	tracker := agentlog.NewAttemptTracker()

	llmReq := llm.Request{
		Messages:    req.Messages,
		Schema:      req.Schema,
		Temperature: req.Temperature,
	}

	result := Result{Failure: FailureExhausted}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			result.Failure = FailureCanceled
			break
		}
		result.Attempts = attempt

		tracker.Start()
		raw, err := e.complete(ctx, llmReq)
		if err != nil {
			if ctx.Err() != nil {
				tracker.End(agentlog.OutcomeProvider, "", err)
				result.Failure = FailureCanceled
				result.LastFailure = FailureProvider
				break
			}
			tracker.End(agentlog.OutcomeProvider, "", err)
			recordAttempt(req.AgentType, agentlog.OutcomeProvider)
			result.LastFailure = FailureProvider
			logger.Warn("generation attempt failed",
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", err,
			)
			continue
		}

		text := strings.TrimSpace(StripReasoning(raw))
		if err := e.policy.Validate(text); err != nil {
			tracker.End(agentlog.OutcomeValidation, text, err)
			recordAttempt(req.AgentType, agentlog.OutcomeValidation)
			result.LastFailure = FailureValidation
			logger.Warn("generation output rejected",
				"attempt", attempt,
				"max_retries", maxRetries,
				"reason", err,
			)
			continue
		}

		tracker.End(agentlog.OutcomeSuccess, text, nil)
		recordAttempt(req.AgentType, agentlog.OutcomeSuccess)
		result = Result{Text: text, Failure: FailureNone, Attempts: attempt}
		break
	}

	result.Duration = time.Since(start)
	recordResult(req.AgentType, result.Failure, result.Duration)

	if result.OK() {
		logger.Debug("generation succeeded", "attempts", result.Attempts, "duration", result.Duration)
	} else {
		logger.Error("generation failed",
			"failure", result.Failure,
			"last_failure", result.LastFailure,
			"attempts", result.Attempts,
			"duration", result.Duration,
		)
	}
	e.log(ctx, req, result, tracker)
	return result
}

func (e *Executor) complete(ctx context.Context, req llm.Request) (string, error) {
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}
	return e.provider.Complete(ctx, req)
}

func (e *Executor) log(ctx context.Context, req GenerateRequest, result Result, tracker *agentlog.AttemptTracker) {
	if !e.agentLogger.Enabled() {
		return
	}
	entry := agentlog.Entry{
		SessionID:      req.SessionID,
		AgentType:      agentlog.AgentType(req.AgentType),
		InputPrompt:    systemPrompt(req.Messages),
		InputMessages:  req.Messages,
		OutputResponse: result.Text,
		Model:          e.model,
		Temperature:    req.Temperature,
		DurationMs:     int(result.Duration.Milliseconds()),
		Success:        result.OK(),
		Attempts:       tracker.Build(),
	}
	if !result.OK() {
		entry.ErrorMessage = result.Failure.String() + ": last " + result.LastFailure.String()
	}
	e.agentLogger.Log(context.WithoutCancel(ctx), entry)
}

func systemPrompt(messages []llm.Message) string {
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			return m.Content
		}
	}
	return ""
}

// AgentLogger returns the agent logger.
func (e *Executor) AgentLogger() *agentlog.Logger {
	return e.agentLogger
}
