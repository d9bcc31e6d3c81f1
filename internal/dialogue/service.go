// Package dialogue runs a conversational turn: the persona reply followed by
// the reply options for the user.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runixer/heirloom/internal/agent"
	"github.com/runixer/heirloom/internal/agent/scriptwriter"
	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/config"
	"github.com/runixer/heirloom/internal/history"
	"github.com/runixer/heirloom/internal/jobtype"
	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/storage"
	"github.com/runixer/heirloom/internal/transcript"
)

// VisitorSpeaker names the user in transcripts.
const VisitorSpeaker = "Visitor"

var (
	// ErrEmptyInput is returned for a blank user message.
	ErrEmptyInput = errors.New("empty user input")
	// ErrPersonaMismatch is returned when a session turn names a persona
	// other than the session's.
	ErrPersonaMismatch = errors.New("persona does not match session")
	// ErrNoSessions is returned by session operations without a repository.
	ErrNoSessions = errors.New("session storage not configured")
)

// TranscriptSink records the lines of a conversation. Forget releases a
// conversation whose session is gone.
type TranscriptSink interface {
	Append(conversationID, title string, lines ...transcript.Line) error
	Forget(conversationID string)
}

// TurnRequest is one user message to a persona.
type TurnRequest struct {
	Persona   string
	Input     string
	History   []llm.Message
	SessionID string
}

// TurnResult is the outcome of a turn. Options is either empty or holds
// exactly three lines.
type TurnResult struct {
	SessionID string
	Persona   *catalog.Profile
	Reply     string
	Options   []string
	Strategy  string
	// Degraded is set when Reply is the fallback line.
	Degraded bool
	// History is the input history plus the new user message and reply.
	History  []llm.Message
	Duration time.Duration
}

// Service runs dialogue turns.
type Service struct {
	catalog      *catalog.Catalog
	persona      agent.Agent
	scriptwriter agent.Agent
	sessions     storage.SessionRepository
	transcripts  TranscriptSink
	cfg          *config.Config
	logger       *slog.Logger
}

// NewService creates a Service. sessions and transcripts may be nil.
func NewService(
	cat *catalog.Catalog,
	persona agent.Agent,
	scriptwriter agent.Agent,
	sessions storage.SessionRepository,
	transcripts TranscriptSink,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		catalog:      cat,
		persona:      persona,
		scriptwriter: scriptwriter,
		sessions:     sessions,
		transcripts:  transcripts,
		cfg:          cfg,
		logger:       logger.With("component", "dialogue"),
	}
}

// Catalog returns the persona catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Turn runs one turn. An unknown persona fails with catalog.ErrNotFound
// before any generation. A failed reply is not an error: the result carries
// the fallback line with Degraded set and no options.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := time.Now()

	profile, err := s.catalog.FindByTitle(req.Persona)
	if err != nil {
		recordTurn(outcomeNotFound, time.Since(start))
		return nil, err
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		recordTurn(outcomeError, time.Since(start))
		return nil, ErrEmptyInput
	}

	logger := s.logger.With("persona", profile.Title, "session_id", req.SessionID)
	trimmed := history.Trim(req.History, s.cfg.Generation.HistoryBudget, input)
	if dropped := len(req.History) - len(trimmed); dropped > 0 {
		logger.Debug("history trimmed", "kept", len(trimmed), "dropped", dropped)
	}

	shared := agent.NewSharedContext(req.SessionID, profile, s.cfg.Bot.Language)
	ctx = agent.WithContext(ctx, shared)

	replyResp, err := s.persona.Execute(jobtype.WithJobType(ctx, jobtype.Reply), &agent.Request{
		Shared:   shared,
		Query:    input,
		Messages: trimmed,
	})
	if err != nil {
		recordTurn(outcomeError, time.Since(start))
		return nil, fmt.Errorf("persona reply: %w", err)
	}
	// a fallback produced by cancellation is not a reply worth keeping
	if err := ctx.Err(); err != nil && replyResp.Degraded {
		recordTurn(outcomeError, time.Since(start))
		return nil, err
	}

	result := &TurnResult{
		SessionID: req.SessionID,
		Persona:   profile,
		Reply:     replyResp.Content,
		Degraded:  replyResp.Degraded,
	}

	switch {
	case result.Degraded:
		logger.Warn("persona reply degraded to fallback", "attempts", replyResp.Attempts)
	case ctx.Err() != nil:
		logger.Warn("turn canceled after reply, skipping options", "error", ctx.Err())
	default:
		s.addOptions(ctx, shared, result, logger)
	}
	if len(result.Options) == 0 {
		optionsEmptyTotal.Inc()
	}

	result.History = appendTurn(req.History, input, result.Reply)
	s.writeTranscript(req.SessionID, profile, result.History, logger)

	result.Duration = time.Since(start)
	outcome := outcomeOK
	if result.Degraded {
		outcome = outcomeDegraded
	}
	recordTurn(outcome, result.Duration)
	logger.Info("turn completed",
		"degraded", result.Degraded,
		"options", len(result.Options),
		"duration", result.Duration,
	)
	return result, nil
}

func (s *Service) addOptions(ctx context.Context, shared *agent.SharedContext, result *TurnResult, logger *slog.Logger) {
	resp, err := s.scriptwriter.Execute(jobtype.WithJobType(ctx, jobtype.Options), &agent.Request{
		Shared: shared,
		Query:  result.Reply,
	})
	if err != nil {
		logger.Warn("reply options failed", "error", err)
		return
	}
	opts, ok := resp.Structured.(*scriptwriter.Options)
	if !ok || opts == nil || len(opts.Options) != scriptwriter.OptionCount {
		return
	}
	result.Options = opts.Options
	result.Strategy = opts.Strategy
}

// writeTranscript appends the last exchange of h, which ends with the user
// input and the reply.
func (s *Service) writeTranscript(sessionID string, profile *catalog.Profile, h []llm.Message, logger *slog.Logger) {
	if s.transcripts == nil || len(h) < 2 {
		return
	}
	conversationID := sessionID
	if conversationID == "" {
		conversationID = AnonymousConversationID(profile.Title, h)
	}
	now := time.Now()
	err := s.transcripts.Append(conversationID, profile.Title,
		transcript.Line{Time: now, Speaker: VisitorSpeaker, Text: h[len(h)-2].Content},
		transcript.Line{Time: now, Speaker: profile.Title, Text: h[len(h)-1].Content},
	)
	if err != nil && !errors.Is(err, transcript.ErrDisabled) {
		logger.Warn("failed to write transcript", "error", err)
	}
}

// AnonymousConversationID keys a conversation that has no session by its
// persona and opening exchange. A client resending its history keeps the key
// across turns; a fresh history starts a new conversation.
func AnonymousConversationID(title string, h []llm.Message) string {
	var opening strings.Builder
	for i := 0; i < len(h) && i < 2; i++ {
		opening.WriteString(string(h[i].Role))
		opening.WriteByte(0)
		opening.WriteString(strings.TrimSpace(h[i].Content))
		opening.WriteByte(0)
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(opening.String()))
	return "persona:" + strings.ToLower(title) + ":" + id.String()
}

// appendTurn returns a copy of h with the user input and reply appended. An
// input already present as the last user message is not repeated.
func appendTurn(h []llm.Message, input, reply string) []llm.Message {
	out := make([]llm.Message, 0, len(h)+2)
	out = append(out, h...)
	if n := len(out); n == 0 || out[n-1].Role != llm.RoleUser || strings.TrimSpace(out[n-1].Content) != input {
		out = append(out, llm.Message{Role: llm.RoleUser, Content: input})
	}
	return append(out, llm.Message{Role: llm.RoleAssistant, Content: reply})
}
