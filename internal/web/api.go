package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/runixer/heirloom/internal/catalog"
	"github.com/runixer/heirloom/internal/dialogue"
	"github.com/runixer/heirloom/internal/llm"
	"github.com/runixer/heirloom/internal/markdown"
	"github.com/runixer/heirloom/internal/speech"
	"github.com/runixer/heirloom/internal/storage"
)

// QuestionKeys are the locale keys of the starter questions, in display order.
var QuestionKeys = []string{"questions.origin", "questions.unique", "questions.event"}

var errVoiceDisabled = errors.New("voice questions are disabled")

type errorResponse struct {
	Error string `json:"error"`
}

type personasResponse struct {
	Personas []*catalog.Profile `json:"personas"`
}

type questionsResponse struct {
	Language  string   `json:"language"`
	Questions []string `json:"questions"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	Persona   string           `json:"persona"`
	Question  string           `json:"question"`
	SessionID string           `json:"session_id,omitempty"`
	History   []historyMessage `json:"history,omitempty"`
	// Audio is a base64 voice question, transcribed into Question.
	Audio string `json:"audio,omitempty"`
	// Speak asks for the reply audio in the same response.
	Speak bool `json:"speak,omitempty"`
}

type askResponse struct {
	SessionID   string           `json:"session_id,omitempty"`
	Persona     string           `json:"persona"`
	Question    string           `json:"question"`
	Reply       string           `json:"reply"`
	ReplyHTML   string           `json:"reply_html"`
	Options     []string         `json:"options"`
	Strategy    string           `json:"strategy,omitempty"`
	Degraded    bool             `json:"degraded"`
	History     []historyMessage `json:"history,omitempty"`
	Audio       string           `json:"audio,omitempty"`
	Voice       string           `json:"voice,omitempty"`
	SpeechError string           `json:"speech_error,omitempty"`
	DurationMs  int64            `json:"duration_ms"`
}

type speakRequest struct {
	Text    string `json:"text"`
	Persona string `json:"persona,omitempty"`
	Accent  string `json:"accent,omitempty"`
}

type speakResponse struct {
	Audio string `json:"audio"`
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type sessionRequest struct {
	Persona string `json:"persona"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	Persona   string    `json:"persona"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionHistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []historyMessage `json:"messages"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads a JSON body into v, answering the client itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, storage.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, dialogue.ErrEmptyInput), errors.Is(err, errVoiceDisabled):
		return http.StatusBadRequest
	case errors.Is(err, dialogue.ErrPersonaMismatch):
		return http.StatusConflict
	case errors.Is(err, dialogue.ErrNoSessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) personasHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, personasResponse{Personas: s.dialogue.Catalog().All()})
}

func (s *Server) language(r *http.Request) string {
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return strings.ToLower(lang)
	}
	return s.cfg.Bot.Language
}

func (s *Server) questionsHandler(w http.ResponseWriter, r *http.Request) {
	lang := s.language(r)
	writeJSON(w, http.StatusOK, questionsResponse{Language: lang, Questions: s.questions(lang)})
}

func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	if req.Audio != "" {
		text, err := s.recognize(ctx, req.Audio)
		if err != nil {
			s.logger.Warn("voice question failed", "error", err)
			recordVoiceQuestion(statusError)
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				status = http.StatusBadGateway
			}
			writeError(w, status, err.Error())
			return
		}
		recordVoiceQuestion(statusSuccess)
		req.Question = text
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	var (
		result *dialogue.TurnResult
		err    error
	)
	if req.SessionID != "" {
		unlock := s.locks.Lock(req.SessionID)
		result, err = s.dialogue.SessionTurn(ctx, req.SessionID, req.Persona, req.Question)
		unlock()
	} else {
		if strings.TrimSpace(req.Persona) == "" {
			writeError(w, http.StatusBadRequest, "persona is required")
			return
		}
		hist, herr := toLLMHistory(req.History)
		if herr != nil {
			writeError(w, http.StatusBadRequest, herr.Error())
			return
		}
		result, err = s.dialogue.Turn(ctx, dialogue.TurnRequest{
			Persona: req.Persona,
			Input:   req.Question,
			History: hist,
		})
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("turn failed", "persona", req.Persona, "session_id", req.SessionID, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	resp := askResponse{
		SessionID:  result.SessionID,
		Persona:    result.Persona.Title,
		Question:   strings.TrimSpace(req.Question),
		Reply:      result.Reply,
		Options:    result.Options,
		Strategy:   result.Strategy,
		Degraded:   result.Degraded,
		DurationMs: result.Duration.Milliseconds(),
	}
	if resp.Options == nil {
		resp.Options = []string{}
	}
	if html, err := markdown.ToHTML(result.Reply); err != nil {
		s.logger.Warn("failed to render reply", "error", err)
	} else {
		resp.ReplyHTML = html
	}
	if req.SessionID == "" {
		resp.History = fromLLMHistory(result.History)
	}

	if req.Speak {
		if s.speaker == nil {
			resp.SpeechError = "speech is disabled"
		} else if audio, err := s.speaker.Speak(ctx, result.Reply, result.Persona.Accent); err != nil {
			resp.SpeechError = err.Error()
		} else {
			resp.Audio = audio.Base64()
			resp.Voice = audio.Voice
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recognize(ctx context.Context, encoded string) (string, error) {
	if s.recognizer == nil {
		return "", errVoiceDisabled
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: audio is not valid base64", dialogue.ErrEmptyInput)
	}
	text, err := s.recognizer.Recognize(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("recognize voice question: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no speech recognized", dialogue.ErrEmptyInput)
	}
	return text, nil
}

func (s *Server) speakHandler(w http.ResponseWriter, r *http.Request) {
	if s.speaker == nil {
		writeError(w, http.StatusServiceUnavailable, "speech is disabled")
		return
	}
	var req speakRequest
	if !decodeBody(w, r, &req) {
		return
	}

	accent := req.Accent
	if req.Persona != "" {
		profile, err := s.dialogue.Catalog().FindByTitle(req.Persona)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		accent = profile.Accent
	}

	result, err := s.speaker.Speak(r.Context(), req.Text, accent)
	if err != nil {
		if errors.Is(err, speech.ErrNothingToSay) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, speakResponse{
		Audio: result.Base64(),
		Text:  result.Text.String(),
		Voice: result.Voice,
	})
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := s.dialogue.CreateSession(r.Context(), req.Persona)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("failed to create session", "persona", req.Persona, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: session.ID,
		Persona:   session.Persona,
		Language:  session.Language,
		CreatedAt: session.CreatedAt,
	})
}

func (s *Server) sessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, err := s.dialogue.History(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("failed to load session history", "session_id", id, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	resp := sessionHistoryResponse{SessionID: id, Messages: make([]historyMessage, 0, len(stored))}
	for _, m := range stored {
		resp.Messages = append(resp.Messages, historyMessage{Role: m.Role, Content: m.Content})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.dialogue.DeleteSession(r.Context(), id); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("failed to delete session", "session_id", id, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toLLMHistory(in []historyMessage) ([]llm.Message, error) {
	out := make([]llm.Message, 0, len(in))
	for i, m := range in {
		role := llm.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		if role != llm.RoleUser && role != llm.RoleAssistant {
			return nil, fmt.Errorf("history[%d]: role must be user or assistant", i)
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

func fromLLMHistory(in []llm.Message) []historyMessage {
	out := make([]historyMessage, 0, len(in))
	for _, m := range in {
		out = append(out, historyMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
