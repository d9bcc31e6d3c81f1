package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/storage"
)

// CreateSession starts a stored conversation with a persona.
func (s *Service) CreateSession(ctx context.Context, persona string) (storage.Session, error) {
	if s.sessions == nil {
		return storage.Session{}, ErrNoSessions
	}
	profile, err := s.catalog.FindByTitle(persona)
	if err != nil {
		return storage.Session{}, err
	}
	session, err := s.sessions.CreateSession(ctx, storage.Session{
		Persona:  profile.Title,
		Language: s.cfg.Bot.Language,
	})
	if err != nil {
		return storage.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("session created", "session_id", session.ID, "persona", profile.Title)
	return session, nil
}

// SessionTurn runs a turn on a stored conversation. persona may be empty;
// otherwise it must name the session's persona. The new user message and
// reply are appended to the session. A failed append is logged and the
// result is still returned.
func (s *Service) SessionTurn(ctx context.Context, sessionID, persona, input string) (*TurnResult, error) {
	if s.sessions == nil {
		return nil, ErrNoSessions
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if persona != "" && !strings.EqualFold(strings.TrimSpace(persona), session.Persona) {
		return nil, fmt.Errorf("%w: session %s talks to %q", ErrPersonaMismatch, sessionID, session.Persona)
	}

	stored, err := s.sessions.GetHistory(ctx, sessionID, s.cfg.Sessions.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	hist := make([]llm.Message, 0, len(stored))
	for _, m := range stored {
		hist = append(hist, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	result, err := s.Turn(ctx, TurnRequest{
		Persona:   session.Persona,
		Input:     input,
		History:   hist,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}

	// stored even when ctx ended after the reply was generated
	err = s.sessions.AppendMessages(context.WithoutCancel(ctx), sessionID,
		storage.Message{Role: string(llm.RoleUser), Content: strings.TrimSpace(input)},
		storage.Message{Role: string(llm.RoleAssistant), Content: result.Reply},
	)
	if err != nil {
		s.logger.Error("failed to store turn", "session_id", sessionID, "error", err)
	}
	return result, nil
}

// History returns the stored messages of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]storage.Message, error) {
	if s.sessions == nil {
		return nil, ErrNoSessions
	}
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.sessions.GetHistory(ctx, sessionID, s.cfg.Sessions.MaxMessages)
}

// DeleteSession removes a stored conversation and closes its transcript;
// another turn with the same ID would start a new file.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if s.sessions == nil {
		return ErrNoSessions
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if s.transcripts != nil {
		s.transcripts.Forget(sessionID)
	}
	return nil
}
